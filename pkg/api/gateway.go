package api

import (
	"crypto/subtle"
	"net"
	"strings"

	"p2pmessage/pkg/state/logger"

	"github.com/valyala/fasthttp"
)

// gateway guards the client API. Health, readiness and metrics are public;
// the peer endpoint authorizes by access policy in its handler. With no API
// keys configured the client API is open and limited per remote address.
func (s *Server) gateway(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		logger.LogRequestFast(ctx)

		if publicPath(ctx) || peerPath(ctx) {
			next(ctx)
			return
		}

		limitKey := clientIP(ctx)
		if len(s.apiKeys) > 0 {
			key := extractAPIKey(ctx)
			if key == "" || !s.keyAllowed(key) {
				WriteJSONError(ctx, fasthttp.StatusUnauthorized, "unauthorized")
				logger.Warn("request_unauthorized", "path", string(ctx.Path()), "remote", ctx.RemoteAddr().String())
				return
			}
			limitKey = key
		}
		if !s.clientLimits.Allow(limitKey) {
			WriteJSONError(ctx, fasthttp.StatusTooManyRequests, "rate limit exceeded")
			logger.Warn("rate_limited", "path", string(ctx.Path()))
			return
		}
		next(ctx)
	}
}

func (s *Server) keyAllowed(key string) bool {
	ok := false
	for _, k := range s.apiKeys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			ok = true
		}
	}
	return ok
}

func clientIP(ctx *fasthttp.RequestCtx) string {
	host := ctx.RemoteAddr().String()
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	return h
}

func publicPath(ctx *fasthttp.RequestCtx) bool {
	if !ctx.IsGet() {
		return false
	}
	switch string(ctx.Path()) {
	case "/healthz", "/readyz", "/metrics":
		return true
	}
	return false
}

func peerPath(ctx *fasthttp.RequestCtx) bool {
	return strings.HasPrefix(string(ctx.Path()), "/rpc/")
}
