package api

import (
	"slices"

	"p2pmessage/pkg/apperr"
	"p2pmessage/pkg/models"
	"p2pmessage/pkg/router"
	"p2pmessage/pkg/state/logger"
	"p2pmessage/pkg/transport"

	"github.com/valyala/fasthttp"
)

// handleRPC runs one peer-invoked operation. The caller identifies itself
// with X-Agent-Key; the access policy and a per-caller rate limit apply
// before the body reaches the coordinator.
func (s *Server) handleRPC(ctx *fasthttp.RequestCtx) {
	op := router.Param(ctx, "op")
	reqID := getHeader(ctx, transport.HeaderRequestID)

	if !slices.Contains(transport.Ops, op) {
		logger.AuditCall(op, "", reqID, "unknown_op")
		WriteJSONError(ctx, fasthttp.StatusNotFound, "unknown operation")
		return
	}
	caller, err := models.ParseAgentKey(getHeader(ctx, transport.HeaderAgentKey))
	if err != nil || caller.IsZero() {
		logger.AuditCall(op, "", reqID, "no_agent_key")
		WriteJSONError(ctx, fasthttp.StatusUnauthorized, "missing or invalid "+transport.HeaderAgentKey)
		return
	}
	peer := caller.Short()
	if err := s.policy.Check(op, caller, s.directory.Known); err != nil {
		logger.AuditCall(op, peer, reqID, "denied")
		logger.Warn("rpc_denied", "op", op, "peer", peer)
		WriteJSONError(ctx, fasthttp.StatusForbidden, err.Error())
		return
	}
	if !s.peerLimits.Allow(caller.String()) {
		logger.AuditCall(op, peer, reqID, "rate_limited")
		WriteJSONError(ctx, fasthttp.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	res, err := s.messenger.Dispatch(ctx, caller, op, ctx.PostBody())
	if err != nil {
		logger.AuditCall(op, peer, reqID, apperr.KindOf(err).String())
		WriteAppError(ctx, err)
		return
	}
	logger.AuditCall(op, peer, reqID, "ok")
	WriteJSON(ctx, fasthttp.StatusOK, res)
}
