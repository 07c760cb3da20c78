package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/perarneng/gmail2s3/pkg/apperrors"
	"github.com/perarneng/gmail2s3/pkg/interfaces"
)

type EventType string

const (
	EventUploadAttachment EventType = "upload_attachment"
	EventSyncedEmail      EventType = "synced_email"
	EventSyncCompleted    EventType = "sync_completed"
)

var eventTypes = []EventType{EventUploadAttachment, EventSyncedEmail, EventSyncCompleted}

func ParseEventType(s string) (EventType, error) {
	for _, e := range eventTypes {
		if string(e) == s {
			return e, nil
		}
	}
	return "", &apperrors.ValidationError{Field: "event", Message: fmt.Sprintf("unknown webhook event %q", s)}
}

// Subscription registers one endpoint for one event.
type Subscription struct {
	Endpoint string                 `json:"endpoint" yaml:"endpoint" validate:"required,url"`
	Event    EventType              `json:"event" yaml:"event" validate:"required,oneof=upload_attachment synced_email sync_completed"`
	Token    string                 `json:"token,omitempty" yaml:"token,omitempty"`
	Headers  map[string]string      `json:"headers,omitempty" yaml:"headers,omitempty"`
	Params   map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
	// nil means true
	VerifySSL *bool `json:"verify_ssl,omitempty" yaml:"verify_ssl,omitempty"`
}

func (s Subscription) Verify() bool {
	return s.VerifySSL == nil || *s.VerifySSL
}

type Payload struct {
	Message     interfaces.MessageRef   `json:"message"`
	Attachments []interfaces.Attachment `json:"attachments"`
	S3Uploads   []interfaces.S3Dest     `json:"s3_uploads"`
}

// Event is the JSON body POSTed to subscribers.
type Event struct {
	ID      string                 `json:"id"`
	Event   EventType              `json:"event"`
	Payload Payload                `json:"payload"`
	Params  map[string]interface{} `json:"params"`
}

// CopyDest is read from params.s3_copy_dest by the copy receiver.
type CopyDest struct {
	Bucket   string `json:"bucket" validate:"required"`
	Prefix   string `json:"prefix"`
	NameOnly bool   `json:"name_only"`
}

func (e Event) CopyDest() (CopyDest, error) {
	var dest CopyDest
	raw, ok := e.Params["s3_copy_dest"]
	if !ok {
		return dest, &apperrors.ValidationError{Field: "params.s3_copy_dest", Message: "params.s3_copy_dest is required"}
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return dest, &apperrors.ValidationError{Field: "params.s3_copy_dest", Message: err.Error()}
	}
	if err := json.Unmarshal(b, &dest); err != nil {
		return dest, &apperrors.ValidationError{Field: "params.s3_copy_dest", Message: err.Error()}
	}
	if dest.Bucket == "" {
		return dest, &apperrors.ValidationError{Field: "params.s3_copy_dest.bucket", Message: "params.s3_copy_dest.bucket is required"}
	}
	return dest, nil
}
