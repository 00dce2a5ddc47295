package models

import (
	"strings"

	"p2pmessage/pkg/apperr"
)

type PayloadKind string

const (
	PayloadText PayloadKind = "text"
	PayloadFile PayloadKind = "file"
)

type FileKind string

const (
	FileImage FileKind = "image"
	FileVideo FileKind = "video"
	FileOther FileKind = "other"
)

// FileType carries a thumbnail for image and video files.
type FileType struct {
	Kind      FileKind `json:"type"`
	Thumbnail []byte   `json:"thumbnail,omitempty"`
}

func (ft FileType) IsMedia() bool { return ft.Kind == FileImage || ft.Kind == FileVideo }

type FileMetadata struct {
	FileName string   `json:"file_name"`
	FileSize int64    `json:"file_size"`
	FileType FileType `json:"file_type"`
	FileHash string   `json:"file_hash"`
}

// Payload is a tagged union: text carries Text, file carries Metadata and FileType.
type Payload struct {
	Kind     PayloadKind   `json:"type"`
	Text     string        `json:"payload,omitempty"`
	Metadata *FileMetadata `json:"metadata,omitempty"`
	FileType *FileType     `json:"file_type,omitempty"`
}

func TextPayload(s string) Payload { return Payload{Kind: PayloadText, Text: s} }

// FilePayload fills meta's file type from ft when it is unset.
func FilePayload(meta FileMetadata, ft FileType) Payload {
	if meta.FileType.Kind == "" {
		meta.FileType = ft
	}
	return Payload{Kind: PayloadFile, Metadata: &meta, FileType: &ft}
}

func (p Payload) Validate() error {
	switch p.Kind {
	case PayloadText:
		if p.Metadata != nil || p.FileType != nil {
			return apperr.InvalidInput("payload", "text payload carries file fields")
		}
	case PayloadFile:
		if p.Metadata == nil || p.FileType == nil {
			return apperr.InvalidInput("payload", "file payload needs metadata and file_type")
		}
		switch p.FileType.Kind {
		case FileImage, FileVideo, FileOther:
		default:
			return apperr.InvalidInput("payload", "unknown file type %q", p.FileType.Kind)
		}
		if p.Metadata.FileType.Kind != p.FileType.Kind {
			return apperr.InvalidInput("payload", "file_type %q disagrees with metadata %q", p.FileType.Kind, p.Metadata.FileType.Kind)
		}
		if strings.TrimSpace(p.Metadata.FileName) == "" {
			return apperr.InvalidInput("payload", "file payload without file_name")
		}
		if p.Metadata.FileSize < 0 || !SafeInt(p.Metadata.FileSize) {
			return apperr.InvalidInput("payload", "file_size %d out of range", p.Metadata.FileSize)
		}
	default:
		return apperr.InvalidInput("payload", "unknown payload type %q", p.Kind)
	}
	return nil
}

// Message is immutable once committed. Its identity is Hash(), never a field.
type Message struct {
	Author   AgentKey     `json:"author"`
	Receiver AgentKey     `json:"receiver"`
	Payload  Payload      `json:"payload"`
	TimeSent Timestamp    `json:"time_sent"`
	ReplyTo  *ContentHash `json:"reply_to"`
}

func (m Message) Hash() (ContentHash, error) { return HashOf(m) }

// Involves reports whether agent is the author or receiver.
func (m Message) Involves(agent AgentKey) bool {
	return m.Author == agent || m.Receiver == agent
}

// Conversant is the other party from self's point of view.
func (m Message) Conversant(self AgentKey) AgentKey {
	if m.Author == self {
		return m.Receiver
	}
	return m.Author
}

// FileBytes is the raw file content, stored apart from its Message.
type FileBytes struct {
	Data []byte `json:"data"`
}

// PayloadInput is what a client submits; file inputs carry their bytes.
type PayloadInput struct {
	Kind      PayloadKind `json:"type"`
	Text      string      `json:"payload,omitempty"`
	FileName  string      `json:"file_name,omitempty"`
	FileType  FileKind    `json:"file_type,omitempty"`
	Thumbnail []byte      `json:"thumbnail,omitempty"`
	FileHash  string      `json:"file_hash,omitempty"`
	Bytes     []byte      `json:"bytes,omitempty"`
}

type MessageInput struct {
	Receiver AgentKey     `json:"receiver"`
	Payload  PayloadInput `json:"payload"`
	ReplyTo  *ContentHash `json:"reply_to,omitempty"`
}

// Build turns the input into a Payload plus the detached file bytes, if any.
func (in PayloadInput) Build() (Payload, *FileBytes, error) {
	switch in.Kind {
	case PayloadText:
		return TextPayload(in.Text), nil, nil
	case PayloadFile:
		if len(in.Bytes) == 0 {
			return Payload{}, nil, apperr.InvalidInput("payload", "file payload without bytes")
		}
		kind := in.FileType
		if kind == "" {
			kind = FileOther
		}
		ft := FileType{Kind: kind}
		if ft.IsMedia() {
			ft.Thumbnail = in.Thumbnail
		}
		fileHash := in.FileHash
		if fileHash == "" {
			fileHash = HashBytes(in.Bytes)
		} else if fileHash != HashBytes(in.Bytes) {
			return Payload{}, nil, apperr.InvalidInput("payload", "file_hash does not match bytes")
		}
		p := FilePayload(FileMetadata{
			FileName: in.FileName,
			FileSize: int64(len(in.Bytes)),
			FileType: ft,
			FileHash: fileHash,
		}, ft)
		if err := p.Validate(); err != nil {
			return Payload{}, nil, err
		}
		return p, &FileBytes{Data: in.Bytes}, nil
	default:
		return Payload{}, nil, apperr.InvalidInput("payload", "unknown payload type %q", in.Kind)
	}
}
