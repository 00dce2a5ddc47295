package logger

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/valyala/fasthttp"
)

// headers whose values never reach the log
var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"cookie":        true,
}

func maskedValue(v string) string {
	if v == "" {
		return ""
	}
	l := utf8.RuneCountInString(v)
	if l <= 2 {
		return "<redacted>"
	}
	first, _ := utf8.DecodeRuneInString(v)
	last, _ := utf8.DecodeLastRuneInString(v)
	return string(first) + "*****" + string(last)
}

func redactHeaderValue(k string, v string) string {
	if v == "" {
		return ""
	}
	if sensitiveHeaders[strings.ToLower(k)] {
		return maskedValue(v)
	}
	return v
}

// SafeHeadersFast renders request headers with credentials masked.
func SafeHeadersFast(ctx *fasthttp.RequestCtx) string {
	parts := make([]string, 0)
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		key := string(k)
		parts = append(parts, key+"="+redactHeaderValue(key, string(v)))
	})
	return strings.Join(parts, "; ")
}

func LogRequestFast(ctx *fasthttp.RequestCtx) {
	if Log == nil {
		return
	}
	Debug("incoming_request",
		"method", string(ctx.Method()),
		"remote", ctx.RemoteAddr().String(),
		"path", string(ctx.Path()),
		"headers", SafeHeadersFast(ctx),
	)
}

// LogRequest is the net/http variant used by the event stream listener.
func LogRequest(r *http.Request) {
	if Log == nil {
		return
	}
	parts := make([]string, 0, len(r.Header))
	for k, v := range r.Header {
		if len(v) == 0 {
			continue
		}
		parts = append(parts, k+"="+redactHeaderValue(k, v[0]))
	}
	Debug("incoming_request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr, "headers", strings.Join(parts, "; "))
}
