package cli

import (
	"context"
	"fmt"
	"strings"

	"p2pmessage/pkg/store"
	"p2pmessage/pkg/store/keys"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// kindSummary is one entry kind's share of an inspected log.
type kindSummary struct {
	Kind    store.EntryKind `json:"kind"`
	Count   int             `json:"count"`
	Bytes   string          `json:"bytes"`
	First   uint64          `json:"first_position,omitempty"`
	Last    uint64          `json:"last_position,omitempty"`
	Samples []string        `json:"samples,omitempty"`
}

type inspectReport struct {
	Path     string        `json:"path"`
	DiskSize string        `json:"disk_size"`
	Meta     []string      `json:"meta_keys"`
	Kinds    []kindSummary `json:"kinds"`
}

func inspectCmd(o *options) *cobra.Command {
	var samples int
	cmd := &cobra.Command{
		Use:   "inspect <store-path>",
		Short: "Summarize a stopped node's pebble log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := inspectLog(cmd.Context(), args[0], samples)
			if err != nil {
				return err
			}
			return o.print(rep)
		},
	}
	cmd.Flags().IntVar(&samples, "samples", 3, "records to show per kind")
	return cmd
}

func inspectLog(ctx context.Context, path string, samples int) (inspectReport, error) {
	l, err := store.OpenPebble(path, store.PebbleOptions{ReadOnly: true})
	if err != nil {
		return inspectReport{}, err
	}
	defer l.Close()

	rep := inspectReport{Path: path, DiskSize: humanize.IBytes(l.DiskUsage())}

	iter, err := l.DB().NewIter(nil)
	if err != nil {
		return rep, err
	}
	for valid := iter.First(); valid; valid = iter.Next() {
		if k := string(iter.Key()); strings.HasPrefix(k, "meta:") {
			rep.Meta = append(rep.Meta, k)
		}
	}
	if err := iter.Close(); err != nil {
		return rep, err
	}

	for _, kind := range []store.EntryKind{store.KindMessage, store.KindReceipt, store.KindFileBytes} {
		s := kindSummary{Kind: kind}
		var size uint64
		err := l.Scan(ctx, store.ScanOptions{Kind: kind, Order: store.OldestFirst, Materialize: true}, func(rec store.Record) error {
			if s.Count == 0 {
				s.First = uint64(rec.Position)
			}
			s.Last = uint64(rec.Position)
			s.Count++
			size += uint64(len(rec.Content))
			if len(s.Samples) < samples {
				s.Samples = append(s.Samples, fmt.Sprintf("%s %s", keys.GenEntryKey(string(kind), uint64(rec.Position)), clip(rec.Content, 120)))
			}
			return nil
		})
		if err != nil {
			return rep, err
		}
		s.Bytes = humanize.IBytes(size)
		rep.Kinds = append(rep.Kinds, s)
	}
	return rep, nil
}

func clip(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}
