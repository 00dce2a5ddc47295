package signals

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"p2pmessage/pkg/models"
	"p2pmessage/pkg/state/logger"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type HandlerOptions struct {
	// APIKeys, when set, must include the key sent as a bearer token or ?api_key=.
	APIKeys        []string
	OriginPatterns []string
	WriteTimeout   time.Duration
}

// Handler streams envelopes from hub over a websocket. ?kinds=message,receipt
// narrows the stream.
func Handler(hub *Hub, opts HandlerOptions) http.Handler {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.LogRequest(r)
		if !authorized(r, opts.APIKeys) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		kinds, err := parseKinds(r.URL.Query().Get("kinds"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: opts.OriginPatterns})
		if err != nil {
			logger.Warn("events_accept_failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "")

		sub := hub.Subscribe(kinds...)
		defer sub.Close()
		logger.Info("events_subscriber_connected", "remote", r.RemoteAddr, "subscribers", hub.Subscribers())

		ctx := c.CloseRead(r.Context())
		for {
			select {
			case <-ctx.Done():
				logger.Info("events_subscriber_gone", "remote", r.RemoteAddr)
				return
			case env, ok := <-sub.C():
				if !ok {
					c.Close(websocket.StatusGoingAway, "shutting down")
					return
				}
				if err := write(ctx, c, env, opts.WriteTimeout); err != nil {
					logger.Warn("events_write_failed", "remote", r.RemoteAddr, "error", err)
					return
				}
			}
		}
	})
}

func write(ctx context.Context, c *websocket.Conn, env Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return wsjson.Write(ctx, c, env)
}

func authorized(r *http.Request, keys []string) bool {
	if len(keys) == 0 {
		return true
	}
	got := r.URL.Query().Get("api_key")
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		got = strings.TrimPrefix(h, "Bearer ")
	}
	if h := r.Header.Get("X-API-Key"); h != "" {
		got = h
	}
	if got == "" {
		return false
	}
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(got)) == 1 {
			return true
		}
	}
	return false
}

func parseKinds(v string) ([]models.SignalKind, error) {
	if v == "" {
		return nil, nil
	}
	var out []models.SignalKind
	for _, p := range strings.Split(v, ",") {
		switch k := models.SignalKind(strings.TrimSpace(p)); k {
		case models.SignalMessage, models.SignalReceipt, models.SignalTyping:
			out = append(out, k)
		case "":
		default:
			return nil, &kindError{kind: string(k)}
		}
	}
	return out, nil
}

type kindError struct{ kind string }

func (e *kindError) Error() string { return "unknown signal kind " + e.kind }
