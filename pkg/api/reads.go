package api

import (
	"p2pmessage/pkg/apperr"
	"p2pmessage/pkg/models"

	"github.com/valyala/fasthttp"
)

// page is an assembly result plus the token for the following page.
type page struct {
	models.AssemblyResult
	NextCursor string `json:"next_cursor,omitempty"`
}

// batchRequest accepts the cursor either inline or as an opaque token from
// a previous page.
type batchRequest struct {
	models.FilterByBatch
	CursorToken string `json:"cursor_token,omitempty"`
}

func (b batchRequest) filter() (models.FilterByBatch, error) {
	f := b.FilterByBatch
	if f.Cursor == nil && b.CursorToken != "" {
		c, err := models.DecodeCursor(b.CursorToken)
		if err != nil {
			return f, apperr.InvalidInput("filter", "cursor_token: %v", err)
		}
		f.Cursor = c
	}
	if f.BatchSize == 0 {
		f.BatchSize = models.DefaultBatchSize
	}
	if f.BatchSize > models.MaxBatchSize {
		return f, apperr.InvalidInput("filter", "batch_size above %d", models.MaxBatchSize)
	}
	return f, nil
}

func pageFor(res models.AssemblyResult, conversant models.AgentKey) page {
	p := page{AssemblyResult: res}
	if c := res.NextCursor(conversant); c != nil {
		p.NextCursor = models.EncodeCursor(*c)
	}
	return p
}

func (s *Server) handleAllMessages(ctx *fasthttp.RequestCtx) {
	res, err := s.assembler.AllMessages(ctx)
	if err != nil {
		WriteAppError(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, res)
}

func (s *Server) handleLatest(ctx *fasthttp.RequestCtx) {
	n, ok := getQueryInt(ctx, "batch_size", models.DefaultBatchSize)
	if !ok || n > models.MaxBatchSize {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, "invalid batch_size")
		return
	}
	res, err := s.assembler.LatestMessages(ctx, n)
	if err != nil {
		WriteAppError(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, res)
}

func (s *Server) handleNextBatch(ctx *fasthttp.RequestCtx) {
	var req batchRequest
	if !decodeBody(ctx, &req) {
		return
	}
	f, err := req.filter()
	if err != nil {
		WriteAppError(ctx, err)
		return
	}
	res, err := s.assembler.NextBatch(ctx, f)
	if err != nil {
		WriteAppError(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, pageFor(res, f.Conversant))
}

func (s *Server) handleAdjacent(ctx *fasthttp.RequestCtx) {
	var req batchRequest
	if !decodeBody(ctx, &req) {
		return
	}
	f, err := req.filter()
	if err != nil {
		WriteAppError(ctx, err)
		return
	}
	res, err := s.assembler.AdjacentMessages(ctx, f)
	if err != nil {
		WriteAppError(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, pageFor(res, f.Conversant))
}

func (s *Server) handleDay(ctx *fasthttp.RequestCtx) {
	var f models.FilterByAgentDay
	if !decodeBody(ctx, &f) {
		return
	}
	res, err := s.assembler.MessagesByDay(ctx, f)
	if err != nil {
		WriteAppError(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, res)
}

func (s *Server) handleFromAgents(ctx *fasthttp.RequestCtx) {
	var req struct {
		Agents []models.AgentKey `json:"agents"`
	}
	if !decodeBody(ctx, &req) {
		return
	}
	res, err := s.assembler.MessagesFromAgents(ctx, req.Agents)
	if err != nil {
		WriteAppError(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, res)
}
