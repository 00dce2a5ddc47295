package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"p2pmessage/pkg/models"
	"p2pmessage/pkg/state/logger"

	"github.com/google/uuid"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
)

const (
	HeaderAgentKey  = "X-Agent-Key"
	HeaderRequestID = "X-Request-Id"

	rpcPathPrefix = "/rpc/"
)

type ClientOptions struct {
	Timeout         time.Duration
	MaxConnsPerPeer int
	// Dial overrides the network dialer; tests use an in-memory listener.
	Dial fasthttp.DialFunc
}

// Client invokes peer operations over HTTP: POST <peer-url>/rpc/<op>.
type Client struct {
	self    models.AgentKey
	dir     *Directory
	http    *fasthttp.Client
	timeout time.Duration
}

func NewClient(self models.AgentKey, dir *Directory, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	hc := &fasthttp.Client{
		Name:            "p2pmessage",
		MaxConnsPerHost: opts.MaxConnsPerPeer,
		ReadTimeout:     opts.Timeout,
		WriteTimeout:    opts.Timeout,
		Dial:            opts.Dial,
	}
	return &Client{self: self, dir: dir, http: hc, timeout: opts.Timeout}
}

type remoteError struct {
	Error string `json:"error"`
}

func (c *Client) Invoke(ctx context.Context, peer models.AgentKey, op string, payload, out any) (err error) {
	started := time.Now()
	defer func() { observeCall(op, err, time.Since(started)) }()

	base, ok := c.dir.Lookup(peer)
	if !ok {
		return &Error{Kind: Unreachable, Op: op, Peer: peer, Err: ErrUnknownPeer}
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return &Error{Kind: Other, Op: op, Peer: peer, Err: fmt.Errorf("encode payload: %w", err)}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	reqID := uuid.NewString()
	req.SetRequestURI(base + rpcPathPrefix + op)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set(HeaderAgentKey, c.self.String())
	req.Header.Set(HeaderRequestID, reqID)
	req.SetBody(buf.B)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := ctx.Err(); err != nil {
		return &Error{Kind: Unreachable, Op: op, Peer: peer, Err: err}
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		logger.Warn("rpc_call_failed", "op", op, "peer", peer.Short(), "request_id", reqID, "error", err)
		return &Error{Kind: Unreachable, Op: op, Peer: peer, Err: err}
	}

	status := resp.StatusCode()
	switch {
	case status == fasthttp.StatusOK:
	case status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden:
		return &Error{Kind: Unauthorized, Op: op, Peer: peer, Err: remoteMessage(status, resp.Body())}
	default:
		return &Error{Kind: Other, Op: op, Peer: peer, Err: remoteMessage(status, resp.Body())}
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return &Error{Kind: Other, Op: op, Peer: peer, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	logger.Debug("rpc_call_ok", "op", op, "peer", peer.Short(), "request_id", reqID)
	return nil
}

func remoteMessage(status int, body []byte) error {
	var re remoteError
	if json.Unmarshal(body, &re) == nil && re.Error != "" {
		return fmt.Errorf("status %d: %s", status, re.Error)
	}
	return errors.New(fasthttp.StatusMessage(status))
}
