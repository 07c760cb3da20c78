package gmail

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/emersion/go-message/textproto"
	"google.golang.org/api/gmail/v1"
	gomail "gopkg.in/gomail.v2"

	"github.com/perarneng/gmail2s3/pkg/apperrors"
	"github.com/perarneng/gmail2s3/pkg/interfaces"
)

// Forward sends a recomposed copy of email to `to`: prefixed subject, a
// quoted header block above the original bodies, and the original attachments.
func (c *Client) Forward(ctx context.Context, email *interfaces.EmailMessage, to, subjectPrefix string) error {
	if err := c.connected(); err != nil {
		return err
	}
	for _, att := range email.Attachments {
		if att.LocalPath == "" {
			if _, err := c.DownloadAttachments(ctx, email); err != nil {
				return err
			}
			break
		}
	}

	raw, err := composeForward(email, to, subjectPrefix)
	if err != nil {
		return err
	}
	return c.send(ctx, "forward "+email.ID, raw, email.ThreadID)
}

// ForwardRaw resends the original MIME message untouched except for the
// recipients: To is replaced and Cc/Bcc are dropped.
func (c *Client) ForwardRaw(ctx context.Context, ref interfaces.MessageRef, to string) error {
	if err := c.connected(); err != nil {
		return err
	}
	msg, err := c.service.Users.Messages.Get(c.userID, ref.ID).Format("raw").Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return &apperrors.NotFoundError{Resource: "message", ID: ref.ID}
		}
		return providerError("get raw message "+ref.ID, err)
	}
	original, err := decodeBase64(msg.Raw)
	if err != nil {
		return &apperrors.ProviderError{Op: "decode raw message " + ref.ID, Err: err}
	}
	raw, err := readdress(original, to)
	if err != nil {
		return &apperrors.ProviderError{Op: "rewrite raw message " + ref.ID, Err: err}
	}
	return c.send(ctx, "forward raw "+ref.ID, raw, "")
}

func (c *Client) send(ctx context.Context, op string, raw []byte, threadID string) error {
	out := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw), ThreadId: threadID}
	if _, err := c.service.Users.Messages.Send(c.userID, out).Context(ctx).Do(); err != nil {
		return providerError(op, err)
	}
	return nil
}

func composeForward(email *interfaces.EmailMessage, to, subjectPrefix string) ([]byte, error) {
	m := gomail.NewMessage()
	m.SetHeader("To", to)
	m.SetHeader("Subject", subjectPrefix+email.Subject)

	plain := forwardedBlock(email) + email.Plain
	m.SetBody("text/plain", plain)
	if email.HTML != "" {
		m.AddAlternative("text/html", forwardedBlockHTML(email)+email.HTML)
	}
	for _, att := range email.Attachments {
		if att.LocalPath == "" {
			continue
		}
		m.Attach(att.LocalPath, gomail.Rename(att.Filename))
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("compose forward of %s: %w", email.ID, err)
	}
	return buf.Bytes(), nil
}

func forwardedBlock(email *interfaces.EmailMessage) string {
	var b strings.Builder
	b.WriteString("---------- Forwarded message ---------\n")
	fmt.Fprintf(&b, "From: %s\n", email.From)
	fmt.Fprintf(&b, "Date: %s\n", email.Date)
	fmt.Fprintf(&b, "Subject: %s\n", email.Subject)
	fmt.Fprintf(&b, "To: %s\n", email.To)
	if email.Cc != "" {
		fmt.Fprintf(&b, "Cc: %s\n", email.Cc)
	}
	b.WriteString("\n")
	return b.String()
}

func forwardedBlockHTML(email *interfaces.EmailMessage) string {
	lines := strings.Split(strings.TrimRight(forwardedBlock(email), "\n"), "\n")
	for i, l := range lines {
		lines[i] = html.EscapeString(l)
	}
	return `<div class="gmail_quote">` + strings.Join(lines, "<br>") + "</div><br>"
}

func readdress(original []byte, to string) ([]byte, error) {
	br := bufio.NewReader(bytes.NewReader(original))
	header, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header.Set("To", to)
	header.Del("Cc")
	header.Del("Bcc")

	var buf bytes.Buffer
	if err := textproto.WriteHeader(&buf, header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if _, err := io.Copy(&buf, br); err != nil {
		return nil, fmt.Errorf("copy body: %w", err)
	}
	return buf.Bytes(), nil
}
