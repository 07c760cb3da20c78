package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/perarneng/gmail2s3/pkg/apperrors"
	"github.com/perarneng/gmail2s3/pkg/interfaces"
	"github.com/perarneng/gmail2s3/pkg/output"
)

const listPageSize = 500

type Options struct {
	ClientSecretFile string
	TokenFile        string
	// UserID defaults to "me".
	UserID string
}

type Client struct {
	service *gmail.Service
	userID  string
	opts    Options
	writer  interfaces.OutputWriter
	logger  interfaces.Logger
	// label name -> id, filled lazily on the first AddLabels call
	labels map[string]string
}

func NewClient(opts Options, writer interfaces.OutputWriter, logger interfaces.Logger) *Client {
	userID := opts.UserID
	if userID == "" {
		userID = "me"
	}
	return &Client{
		userID: userID,
		opts:   opts,
		writer: writer,
		logger: logger,
	}
}

// NewClientWithService wraps an already authenticated service.
func NewClientWithService(svc *gmail.Service, writer interfaces.OutputWriter, logger interfaces.Logger) *Client {
	c := NewClient(Options{}, writer, logger)
	c.service = svc
	return c
}

func (c *Client) connected() error {
	if c.service == nil {
		return &apperrors.AuthError{Reason: "gmail service not connected"}
	}
	return nil
}

func (c *Client) ListMessages(ctx context.Context, query interfaces.MessageQuery) ([]interfaces.MessageRef, error) {
	if err := c.connected(); err != nil {
		return nil, err
	}
	filter := query.GmailFilter()
	c.logger.Debug(fmt.Sprintf("Listing messages with filter: %s", filter))

	var refs []interfaces.MessageRef
	pageToken := ""
	for {
		call := c.service.Users.Messages.List(c.userID).Q(filter).MaxResults(listPageSize)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, providerError("list messages", err)
		}
		for _, m := range resp.Messages {
			refs = append(refs, interfaces.MessageRef{ID: m.Id, ThreadID: m.ThreadId})
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return refs, nil
}

func (c *Client) GetMessage(ctx context.Context, ref interfaces.MessageRef) (*interfaces.EmailMessage, error) {
	if err := c.connected(); err != nil {
		return nil, err
	}
	msg, err := c.service.Users.Messages.Get(c.userID, ref.ID).Format("full").Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return nil, &apperrors.NotFoundError{Resource: "message", ID: ref.ID}
		}
		return nil, providerError("get message "+ref.ID, err)
	}
	return c.toEmail(msg), nil
}

func (c *Client) toEmail(msg *gmail.Message) *interfaces.EmailMessage {
	email := &interfaces.EmailMessage{
		ID:          msg.Id,
		ThreadID:    msg.ThreadId,
		Snippet:     msg.Snippet,
		Labels:      append([]string(nil), msg.LabelIds...),
		Headers:     []interfaces.Header{},
		Attachments: []interfaces.Attachment{},
	}
	if msg.InternalDate > 0 {
		email.Timestamp = time.UnixMilli(msg.InternalDate).UTC()
	}
	if msg.Payload == nil {
		return email
	}

	for _, header := range msg.Payload.Headers {
		email.Headers = append(email.Headers, interfaces.Header{Name: header.Name, Value: header.Value})
		switch strings.ToLower(header.Name) {
		case "subject":
			email.Subject = header.Value
		case "from":
			email.From = header.Value
		case "to":
			email.To = header.Value
		case "cc":
			email.Cc = header.Value
		case "bcc":
			email.Bcc = header.Value
		case "date":
			email.Date = header.Value
		}
	}

	c.recursiveExtractBody(msg.Payload, &email.HTML, &email.Plain)
	seen := map[string]bool{}
	c.extractAttachmentsRecursive(msg.Id, msg.Payload, seen, &email.Attachments)
	return email
}

func (c *Client) recursiveExtractBody(payload *gmail.MessagePart, htmlContent, plainContent *string) {
	if payload.Filename == "" && payload.Body != nil && payload.Body.Data != "" {
		if data, err := decodeBase64(payload.Body.Data); err == nil {
			switch {
			case payload.MimeType == "text/html" && *htmlContent == "":
				*htmlContent = string(data)
			case payload.MimeType == "text/plain" && *plainContent == "":
				*plainContent = string(data)
			}
		}
	}
	for _, part := range payload.Parts {
		c.recursiveExtractBody(part, htmlContent, plainContent)
	}
}

// extractAttachmentsRecursive collects attachment metadata in MIME order.
// Content is fetched later by DownloadAttachments.
func (c *Client) extractAttachmentsRecursive(messageID string, payload *gmail.MessagePart, seen map[string]bool, out *[]interfaces.Attachment) {
	if c.isAttachment(payload) {
		key := payload.PartId
		if payload.Body != nil && payload.Body.AttachmentId != "" {
			key = payload.Body.AttachmentId
		}
		if !seen[key] {
			seen[key] = true
			att := interfaces.Attachment{
				Filename:  payload.Filename,
				MimeType:  payload.MimeType,
				MessageID: messageID,
			}
			if att.Filename == "" {
				att.Filename = getFilenameFromHeaders(payload.Headers)
			}
			if payload.Body != nil {
				att.Size = payload.Body.Size
				att.AttachmentID = payload.Body.AttachmentId
				if att.AttachmentID == "" && payload.Body.Data != "" {
					if data, err := decodeBase64(payload.Body.Data); err == nil {
						att.Data = data
					}
				}
			}
			*out = append(*out, att)
		}
	}
	for _, part := range payload.Parts {
		c.extractAttachmentsRecursive(messageID, part, seen, out)
	}
}

func (c *Client) isAttachment(part *gmail.MessagePart) bool {
	if part.Filename != "" {
		return true
	}
	for _, header := range part.Headers {
		if strings.EqualFold(header.Name, "content-disposition") &&
			strings.HasPrefix(strings.ToLower(strings.TrimSpace(header.Value)), "attachment") {
			return true
		}
	}
	return part.Body != nil && part.Body.AttachmentId != "" && part.Body.Size > 0
}

// DownloadAttachments writes every attachment of email under the scratch root
// and returns them with LocalPath set. email.Attachments is updated in place.
func (c *Client) DownloadAttachments(ctx context.Context, email *interfaces.EmailMessage) ([]interfaces.Attachment, error) {
	used := map[string]bool{}
	out := make([]interfaces.Attachment, 0, len(email.Attachments))
	for i, att := range email.Attachments {
		data := att.Data
		if att.AttachmentID != "" {
			if err := c.connected(); err != nil {
				return nil, err
			}
			body, err := c.service.Users.Messages.Attachments.Get(c.userID, email.ID, att.AttachmentID).Context(ctx).Do()
			if err != nil {
				return nil, providerError(fmt.Sprintf("download attachment %s of %s", att.Filename, email.ID), err)
			}
			data, err = decodeBase64(body.Data)
			if err != nil {
				return nil, &apperrors.ProviderError{Op: "decode attachment " + att.Filename, Err: err}
			}
		}
		att.Filename = uniqueName(output.SanitizeFilename(att.Filename, fmt.Sprintf("attachment_%d", i+1)), used)
		path, err := c.writer.WriteAttachment(email, att, data)
		if err != nil {
			return nil, err
		}
		att.LocalPath = path
		att.Data = nil
		email.Attachments[i] = att
		out = append(out, att)
	}
	return out, nil
}

func (c *Client) DumpMessage(ctx context.Context, email *interfaces.EmailMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.writer.WriteMessage(email)
}

// AddLabels applies labels by name, creating user labels that do not exist yet.
// Labels the message already carries are skipped, so repeated calls are no-ops.
func (c *Client) AddLabels(ctx context.Context, email *interfaces.EmailMessage, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	if err := c.connected(); err != nil {
		return err
	}
	present := make(map[string]bool, len(email.Labels))
	for _, id := range email.Labels {
		present[id] = true
	}

	var add []string
	for _, name := range labels {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id, err := c.resolveLabelID(ctx, name)
		if err != nil {
			return err
		}
		if present[id] {
			continue
		}
		present[id] = true
		add = append(add, id)
	}
	if len(add) == 0 {
		return nil
	}

	req := &gmail.ModifyMessageRequest{AddLabelIds: add}
	msg, err := c.service.Users.Messages.Modify(c.userID, email.ID, req).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return &apperrors.NotFoundError{Resource: "message", ID: email.ID}
		}
		return providerError("modify labels of "+email.ID, err)
	}
	if msg != nil && len(msg.LabelIds) > 0 {
		email.Labels = append([]string(nil), msg.LabelIds...)
	} else {
		email.Labels = append(email.Labels, add...)
	}
	return nil
}

func (c *Client) resolveLabelID(ctx context.Context, name string) (string, error) {
	if c.labels == nil {
		lr, err := c.service.Users.Labels.List(c.userID).Context(ctx).Do()
		if err != nil {
			return "", providerError("list labels", err)
		}
		c.labels = make(map[string]string, len(lr.Labels))
		for _, l := range lr.Labels {
			c.labels[l.Name] = l.Id
		}
	}
	if id, ok := c.labels[name]; ok {
		return id, nil
	}
	created, err := c.service.Users.Labels.Create(c.userID, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", providerError(fmt.Sprintf("create label %q", name), err)
	}
	c.logger.Info(fmt.Sprintf("Created label %s (%s)", name, created.Id))
	c.labels[name] = created.Id
	return created.Id, nil
}

func getFilenameFromHeaders(headers []*gmail.MessagePartHeader) string {
	for _, header := range headers {
		if strings.ToLower(header.Name) == "content-disposition" {
			value := header.Value
			if idx := strings.Index(strings.ToLower(value), "filename="); idx != -1 {
				filename := value[idx+9:]
				if idx := strings.Index(filename, ";"); idx != -1 {
					filename = filename[:idx]
				}
				return strings.Trim(strings.TrimSpace(filename), `"`)
			}
		}
	}
	return ""
}

// uniqueName appends _1, _2, ... to the stem until name is not yet taken.
func uniqueName(name string, used map[string]bool) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for n := 1; used[candidate]; n++ {
		candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
	used[candidate] = true
	return candidate
}

// decodeBase64 accepts padded and unpadded base64url, which Gmail mixes.
func decodeBase64(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func providerError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden) {
		return &apperrors.AuthError{Reason: op, Err: err}
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &apperrors.AuthError{Reason: "token refresh failed", Err: err}
	}
	return &apperrors.ProviderError{Op: op, Err: err}
}

var _ interfaces.GmailClient = (*Client)(nil)
