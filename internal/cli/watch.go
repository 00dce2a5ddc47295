package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func watchCmd(o *options) *cobra.Command {
	var (
		events string
		kinds  string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live message, receipt and typing events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return watch(cmd.Context(), o, events, kinds, limit)
		},
	}
	cmd.Flags().StringVar(&events, "events", envOr("P2PMESSAGE_EVENTS", "ws://127.0.0.1:7421/v1/events"), "events websocket URL")
	cmd.Flags().StringVar(&kinds, "kinds", "", "comma separated subset of message,receipt,typing")
	cmd.Flags().IntVar(&limit, "limit", 0, "exit after this many events (0 = run until interrupted)")
	return cmd
}

func watch(ctx context.Context, o *options, events, kinds string, limit int) error {
	u, err := url.Parse(events)
	if err != nil {
		return fmt.Errorf("--events: %w", err)
	}
	if kinds != "" {
		q := u.Query()
		q.Set("kinds", kinds)
		u.RawQuery = q.Encode()
	}
	hdr := http.Header{}
	if o.apiKey != "" {
		hdr.Set("Authorization", "Bearer "+o.apiKey)
	}
	c, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{HTTPHeader: hdr})
	if err != nil {
		return fmt.Errorf("connect %s: %w", u.Redacted(), err)
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	for seen := 0; limit == 0 || seen < limit; seen++ {
		var env map[string]any
		if err := wsjson.Read(ctx, c, &env); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := o.print(env); err != nil {
			return err
		}
	}
	return nil
}
