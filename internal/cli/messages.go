package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"p2pmessage/pkg/models"

	"github.com/spf13/cobra"
)

func identityCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "identity",
		Short: "Show the node's agent key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out map[string]any
			if err := o.client().Do(cmd.Context(), http.MethodGet, "/v1/identity", nil, &out); err != nil {
				return err
			}
			return o.print(out)
		},
	}
}

func sendCmd(o *options) *cobra.Command {
	var (
		file     string
		fileType string
		replyTo  string
	)
	cmd := &cobra.Command{
		Use:   "send <receiver> [text]",
		Short: "Send a text or file message",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			receiver, err := models.ParseAgentKey(args[0])
			if err != nil {
				return err
			}
			in := models.MessageInput{Receiver: receiver}
			switch {
			case file != "" && len(args) == 2:
				return fmt.Errorf("give either text or --file, not both")
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				in.Payload = models.PayloadInput{
					Kind:     models.PayloadFile,
					FileName: filepath.Base(file),
					FileType: models.FileKind(fileType),
					Bytes:    data,
				}
			case len(args) == 2:
				in.Payload = models.PayloadInput{Kind: models.PayloadText, Text: args[1]}
			default:
				return fmt.Errorf("nothing to send: give text or --file")
			}
			if replyTo != "" {
				h, err := models.ParseContentHash(replyTo)
				if err != nil {
					return fmt.Errorf("--reply-to: %w", err)
				}
				in.ReplyTo = &h
			}
			var out map[string]any
			if err := o.client().Do(cmd.Context(), http.MethodPost, "/v1/messages", in, &out); err != nil {
				return err
			}
			return o.print(out)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "send this file instead of text")
	cmd.Flags().StringVar(&fileType, "file-type", string(models.FileOther), "file kind: image, video or other")
	cmd.Flags().StringVar(&replyTo, "reply-to", "", "hash of the message being answered")
	return cmd
}

func allCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Dump every message on the node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out map[string]any
			if err := o.client().Do(cmd.Context(), http.MethodGet, "/v1/messages", nil, &out); err != nil {
				return err
			}
			return o.print(out)
		},
	}
}

func latestCmd(o *options) *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Latest messages per conversant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{"batch_size": {strconv.Itoa(size)}}
			var out map[string]any
			if err := o.client().Do(cmd.Context(), http.MethodGet, "/v1/messages/latest?"+q.Encode(), nil, &out); err != nil {
				return err
			}
			return o.print(out)
		},
	}
	cmd.Flags().IntVar(&size, "batch-size", models.DefaultBatchSize, "messages per conversant")
	return cmd
}

type batchFlags struct {
	size        int
	payloadType string
	cursor      string
}

func (b *batchFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&b.size, "batch-size", models.DefaultBatchSize, "page size")
	cmd.Flags().StringVar(&b.payloadType, "payload-type", string(models.PayloadTypeAll), "Text, Media, File, Other or All")
	cmd.Flags().StringVar(&b.cursor, "cursor", "", "next_cursor from a previous page")
}

func (b *batchFlags) request(conversant string) (any, error) {
	agent, err := models.ParseAgentKey(conversant)
	if err != nil {
		return nil, err
	}
	pt, err := models.ParsePayloadType(b.payloadType)
	if err != nil {
		return nil, err
	}
	return struct {
		models.FilterByBatch
		CursorToken string `json:"cursor_token,omitempty"`
	}{
		FilterByBatch: models.FilterByBatch{Conversant: agent, BatchSize: b.size, PayloadType: pt},
		CursorToken:   b.cursor,
	}, nil
}

func batchCmd(o *options, use, short, path string) *cobra.Command {
	var b batchFlags
	cmd := &cobra.Command{
		Use:   use + " <conversant>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := b.request(args[0])
			if err != nil {
				return err
			}
			var out map[string]any
			if err := o.client().Do(cmd.Context(), http.MethodPost, path, req, &out); err != nil {
				return err
			}
			return o.print(out)
		},
	}
	b.bind(cmd)
	return cmd
}

func nextCmd(o *options) *cobra.Command {
	return batchCmd(o, "next", "Page backwards through a conversation", "/v1/messages/next")
}

func adjacentCmd(o *options) *cobra.Command {
	return batchCmd(o, "adjacent", "Messages on both sides of a cursor", "/v1/messages/adjacent")
}

func dayCmd(o *options) *cobra.Command {
	var (
		day         string
		payloadType string
	)
	cmd := &cobra.Command{
		Use:   "day <conversant>",
		Short: "One UTC day of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := models.ParseAgentKey(args[0])
			if err != nil {
				return err
			}
			pt, err := models.ParsePayloadType(payloadType)
			if err != nil {
				return err
			}
			ts, err := parseDay(day)
			if err != nil {
				return err
			}
			f := models.FilterByAgentDay{Conversant: agent, Day: ts, PayloadType: pt}
			var out map[string]any
			if err := o.client().Do(cmd.Context(), http.MethodPost, "/v1/messages/day", f, &out); err != nil {
				return err
			}
			return o.print(out)
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "YYYY-MM-DD or unix seconds (default today, UTC)")
	cmd.Flags().StringVar(&payloadType, "payload-type", string(models.PayloadTypeAll), "Text, Media, File, Other or All")
	return cmd
}

// parseDay accepts a date, unix seconds, or "" for today.
func parseDay(v string) (models.Timestamp, error) {
	if v == "" {
		return models.TimestampFrom(time.Now()), nil
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return models.TimestampFromSeconds(secs), nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return 0, fmt.Errorf("--day %q: want YYYY-MM-DD or unix seconds", v)
	}
	return models.TimestampFrom(t), nil
}

func agentsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "agents <agent>...",
		Short: "Every message exchanged with the given agents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agents := make([]models.AgentKey, 0, len(args))
			for _, a := range args {
				k, err := models.ParseAgentKey(a)
				if err != nil {
					return err
				}
				agents = append(agents, k)
			}
			var out map[string]any
			body := map[string]any{"agents": agents}
			if err := o.client().Do(cmd.Context(), http.MethodPost, "/v1/messages/agents", body, &out); err != nil {
				return err
			}
			return o.print(out)
		},
	}
}

func readCmd(o *options) *cobra.Command {
	var sender string
	cmd := &cobra.Command{
		Use:   "read <message-hash>",
		Short: "Mark a received message read and notify its sender",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := models.ParseContentHash(args[0])
			if err != nil {
				return err
			}
			from, err := models.ParseAgentKey(sender)
			if err != nil {
				return fmt.Errorf("--sender: %w", err)
			}
			var out map[string]any
			body := map[string]any{"sender": from}
			if err := o.client().Do(cmd.Context(), http.MethodPost, "/v1/messages/"+id.String()+"/read", body, &out); err != nil {
				return err
			}
			return o.print(out)
		},
	}
	cmd.Flags().StringVar(&sender, "sender", "", "agent key of the message author")
	_ = cmd.MarkFlagRequired("sender")
	return cmd
}

func typingCmd(o *options) *cobra.Command {
	var stop bool
	cmd := &cobra.Command{
		Use:   "typing <agent>",
		Short: "Tell a peer you are (or stopped) typing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := models.ParseAgentKey(args[0])
			if err != nil {
				return err
			}
			body := map[string]any{"agent": agent, "is_typing": !stop}
			var out map[string]any
			if err := o.client().Do(cmd.Context(), http.MethodPost, "/v1/typing", body, &out); err != nil {
				return err
			}
			return o.print(out)
		},
	}
	cmd.Flags().BoolVar(&stop, "stop", false, "send is_typing=false")
	return cmd
}
