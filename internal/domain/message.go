package domain

import (
	"strings"
	"time"
)

// ContentKind classifies the payload of an inbound message.
type ContentKind string

const (
	KindText        ContentKind = "text"
	KindAudio       ContentKind = "audio"
	KindImage       ContentKind = "image"
	KindUnsupported ContentKind = "unsupported"
)

// MediaRef is an opaque reference to a binary payload held by the messaging
// platform. It is only resolvable through the MediaSource of the transport
// that produced it.
type MediaRef struct {
	ID   string
	Kind ContentKind
	Ext  string // container suffix when the transport knows it, e.g. ".oga"
}

// Suffix returns the file suffix used when the payload is materialized locally.
func (r MediaRef) Suffix() string {
	if r.Ext != "" {
		return r.Ext
	}
	switch r.Kind {
	case KindAudio:
		return ".m4a"
	case KindImage:
		return ".jpg"
	default:
		return ".bin"
	}
}

// extMimeTypes covers the containers transports report through Ext.
var extMimeTypes = map[string]string{
	".m4a":  "audio/m4a",
	".mp3":  "audio/mpeg",
	".oga":  "audio/ogg",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// MimeType returns the content type of the payload: the one matching Ext
// when the transport set it, otherwise the platform default for the kind.
func (r MediaRef) MimeType() string {
	if mt, ok := extMimeTypes[strings.ToLower(r.Ext)]; ok {
		return mt
	}
	switch r.Kind {
	case KindAudio:
		return "audio/m4a"
	case KindImage:
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// Content is the tagged payload of an InboundEvent. Text is set for KindText,
// Media for KindAudio and KindImage.
type Content struct {
	Kind  ContentKind
	Text  string
	Media MediaRef
}

// TextContent builds a text payload.
func TextContent(text string) Content {
	return Content{Kind: KindText, Text: text}
}

// AudioContent builds an audio payload.
func AudioContent(id string) Content {
	return Content{Kind: KindAudio, Media: MediaRef{ID: id, Kind: KindAudio}}
}

// ImageContent builds an image payload.
func ImageContent(id string) Content {
	return Content{Kind: KindImage, Media: MediaRef{ID: id, Kind: KindImage}}
}

// InboundEvent is a single message delivered by a transport. It is read-only
// to the dispatcher and consumed exactly once.
type InboundEvent struct {
	ID          string // transport event id, or a generated one
	Channel     string // line | telegram
	AuthorID    string
	ReplyHandle string // single-use token identifying where the reply goes
	Content     Content
	ReceivedAt  time.Time
	Redelivery  bool
}

// ReplyMessage is the only output the dispatcher guarantees per event.
type ReplyMessage struct {
	ReplyHandle string
	Text        string
}
