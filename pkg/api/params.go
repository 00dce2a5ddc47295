package api

import (
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
)

func getHeader(ctx *fasthttp.RequestCtx, key string) string {
	return strings.TrimSpace(string(ctx.Request.Header.Peek(key)))
}

func getQuery(ctx *fasthttp.RequestCtx, key string) string {
	return strings.TrimSpace(string(ctx.QueryArgs().Peek(key)))
}

// getQueryInt returns def when the parameter is absent, and ok=false when it
// is present but not an integer.
func getQueryInt(ctx *fasthttp.RequestCtx, key string, def int) (int, bool) {
	v := getQuery(ctx, key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// extractAPIKey reads "Authorization: Bearer <key>" or X-API-Key.
func extractAPIKey(ctx *fasthttp.RequestCtx) string {
	if auth := getHeader(ctx, "Authorization"); auth != "" {
		parts := strings.Fields(auth)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return getHeader(ctx, "X-API-Key")
}
