package api

import (
	"encoding/json"
	"errors"

	"p2pmessage/pkg/apperr"
	"p2pmessage/pkg/state/logger"

	"github.com/valyala/fasthttp"
)

// WriteJSON writes a JSON response with the given status.
func WriteJSON(ctx *fasthttp.RequestCtx, status int, data any) {
	ctx.SetStatusCode(status)
	ctx.Response.Header.Set("Content-Type", "application/json")
	if err := json.NewEncoder(ctx).Encode(data); err != nil {
		logger.Error("response_encode_failed", "path", string(ctx.Path()), "error", err)
	}
}

// WriteJSONError writes {"error": message}.
func WriteJSONError(ctx *fasthttp.RequestCtx, status int, message string) {
	WriteJSON(ctx, status, map[string]any{"error": message})
}

type errorBody struct {
	Error        string `json:"error"`
	Kind         string `json:"kind"`
	Inconsistent bool   `json:"inconsistent,omitempty"`
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidInput:
		return fasthttp.StatusBadRequest
	case apperr.KindNotFound:
		return fasthttp.StatusNotFound
	case apperr.KindUnauthorized:
		return fasthttp.StatusForbidden
	case apperr.KindNetworkUnreachable, apperr.KindRemoteFailure:
		return fasthttp.StatusBadGateway
	default:
		return fasthttp.StatusInternalServerError
	}
}

// WriteAppError writes err with the status its kind maps to.
func WriteAppError(ctx *fasthttp.RequestCtx, err error) {
	kind := apperr.KindOf(err)
	body := errorBody{Error: err.Error(), Kind: kind.String()}
	if errors.Is(err, apperr.ErrInconsistent) {
		body.Inconsistent = true
	}
	status := StatusFor(kind)
	if status >= fasthttp.StatusInternalServerError {
		logger.Error("request_failed", "path", string(ctx.Path()), "kind", kind.String(), "error", err)
	}
	WriteJSON(ctx, status, body)
}

// decodeBody unmarshals the request body into v, writing a 400 on failure.
func decodeBody(ctx *fasthttp.RequestCtx, v any) bool {
	body := ctx.PostBody()
	if len(body) == 0 {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, "request body is required")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
