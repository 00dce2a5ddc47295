package models

import (
	"strings"

	"p2pmessage/pkg/apperr"
)

type PayloadType string

const (
	PayloadTypeText  PayloadType = "Text"
	PayloadTypeMedia PayloadType = "Media"
	PayloadTypeFile  PayloadType = "File"
	PayloadTypeOther PayloadType = "Other"
	PayloadTypeAll   PayloadType = "All"
)

func ParsePayloadType(s string) (PayloadType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return PayloadTypeText, nil
	case "media":
		return PayloadTypeMedia, nil
	case "file":
		return PayloadTypeFile, nil
	case "other":
		return PayloadTypeOther, nil
	case "all", "":
		return PayloadTypeAll, nil
	}
	return "", apperr.InvalidInput("payload_type", "unknown payload type %q", s)
}

func (pt *PayloadType) UnmarshalText(b []byte) error {
	v, err := ParsePayloadType(string(b))
	if err != nil {
		return err
	}
	*pt = v
	return nil
}

// Matches applies the payload-type predicate. Media is image or video,
// File is any file, Other is a file of neither media kind.
func (pt PayloadType) Matches(p Payload) bool {
	switch pt {
	case PayloadTypeAll, "":
		return true
	case PayloadTypeText:
		return p.Kind == PayloadText
	}
	if p.Kind != PayloadFile || p.FileType == nil {
		return false
	}
	switch pt {
	case PayloadTypeFile:
		return true
	case PayloadTypeMedia:
		return p.FileType.IsMedia()
	case PayloadTypeOther:
		return p.FileType.Kind == FileOther
	}
	return false
}

// Cursor marks where a previous page stopped: resume strictly before it.
type Cursor struct {
	Timestamp Timestamp   `json:"timestamp"`
	LastID    ContentHash `json:"last_id"`
}

type FilterByBatch struct {
	Conversant  AgentKey    `json:"conversant"`
	BatchSize   int         `json:"batch_size"`
	PayloadType PayloadType `json:"payload_type"`
	Cursor      *Cursor     `json:"cursor,omitempty"`
}

func (f FilterByBatch) Validate() error {
	if f.Conversant.IsZero() {
		return apperr.InvalidInput("filter", "conversant is required")
	}
	if f.BatchSize <= 0 {
		return apperr.InvalidInput("filter", "batch_size must be positive, got %d", f.BatchSize)
	}
	return validPayloadType(f.PayloadType)
}

type FilterByAgentDay struct {
	Conversant  AgentKey    `json:"conversant"`
	Day         Timestamp   `json:"day"`
	PayloadType PayloadType `json:"payload_type"`
}

func (f FilterByAgentDay) Validate() error {
	if f.Conversant.IsZero() {
		return apperr.InvalidInput("filter", "conversant is required")
	}
	return validPayloadType(f.PayloadType)
}

func validPayloadType(pt PayloadType) error {
	switch pt {
	case PayloadTypeText, PayloadTypeMedia, PayloadTypeFile, PayloadTypeOther, PayloadTypeAll, "":
		return nil
	}
	return apperr.InvalidInput("filter", "unknown payload type %q", pt)
}
