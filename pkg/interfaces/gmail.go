package interfaces

import (
	"context"
	"time"
)

// MessageRef is what a listing call returns: enough to fetch the message later.
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id,omitempty"`
}

type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Attachment struct {
	Filename     string `json:"filename"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	AttachmentID string `json:"attachment_id,omitempty"`
	MessageID    string `json:"message_id"`
	// LocalPath is set once the attachment has been written to the scratch root.
	LocalPath string `json:"local_path,omitempty"`
	// Data holds inline content when Gmail returned the body without an attachment id.
	Data []byte `json:"-"`
}

type EmailMessage struct {
	ID          string       `json:"id"`
	ThreadID    string       `json:"thread_id"`
	Timestamp   time.Time    `json:"timestamp"`
	Subject     string       `json:"subject"`
	Date        string       `json:"date"`
	From        string       `json:"sender"`
	To          string       `json:"recipient"`
	Cc          string       `json:"cc,omitempty"`
	Bcc         string       `json:"bcc,omitempty"`
	Snippet     string       `json:"snippet,omitempty"`
	Labels      []string     `json:"labels,omitempty"`
	Plain       string       `json:"plain,omitempty"`
	HTML        string       `json:"html,omitempty"`
	Headers     []Header     `json:"headers"`
	Attachments []Attachment `json:"attachments"`
}

func (m *EmailMessage) Ref() MessageRef {
	return MessageRef{ID: m.ID, ThreadID: m.ThreadID}
}

// GmailClient is the mailbox surface the orchestrators drive.
type GmailClient interface {
	Connect(ctx context.Context) error
	ListMessages(ctx context.Context, query MessageQuery) ([]MessageRef, error)
	GetMessage(ctx context.Context, ref MessageRef) (*EmailMessage, error)
	DownloadAttachments(ctx context.Context, email *EmailMessage) ([]Attachment, error)
	DumpMessage(ctx context.Context, email *EmailMessage) (string, error)
	AddLabels(ctx context.Context, email *EmailMessage, labels []string) error
	Forward(ctx context.Context, email *EmailMessage, to, subjectPrefix string) error
	ForwardRaw(ctx context.Context, ref MessageRef, to string) error
}
