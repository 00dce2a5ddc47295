package api

import (
	"p2pmessage/pkg/models"
	"p2pmessage/pkg/router"

	"github.com/valyala/fasthttp"
)

type sendResponse struct {
	Hash    models.ContentHash `json:"hash"`
	Message models.Message     `json:"message"`
	Receipt models.Receipt     `json:"receipt"`
}

func (s *Server) handleSend(ctx *fasthttp.RequestCtx) {
	var in models.MessageInput
	if !decodeBody(ctx, &in) {
		return
	}
	msg, receipt, err := s.messenger.Send(ctx, in)
	if err != nil {
		WriteAppError(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusCreated, sendResponse{Hash: receipt.ID, Message: msg, Receipt: receipt})
}

func (s *Server) handleMarkRead(ctx *fasthttp.RequestCtx) {
	id, err := models.ParseContentHash(router.Param(ctx, "id"))
	if err != nil {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, "invalid message id")
		return
	}
	var req struct {
		Sender models.AgentKey `json:"sender"`
	}
	if !decodeBody(ctx, &req) {
		return
	}
	res, err := s.messenger.MarkRead(ctx, id, req.Sender)
	if err != nil {
		WriteAppError(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, map[string]any{"receipts": res})
}

func (s *Server) handleTyping(ctx *fasthttp.RequestCtx) {
	var req struct {
		Agent    models.AgentKey `json:"agent"`
		IsTyping bool            `json:"is_typing"`
	}
	if !decodeBody(ctx, &req) {
		return
	}
	if err := s.messenger.SetTyping(ctx, req.Agent, req.IsTyping); err != nil {
		WriteAppError(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, map[string]any{"ok": true})
}
