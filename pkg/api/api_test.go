package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/perarneng/gmail2s3/pkg/apperrors"
	"github.com/perarneng/gmail2s3/pkg/config"
	"github.com/perarneng/gmail2s3/pkg/interfaces"
	"github.com/perarneng/gmail2s3/pkg/logger"
	"github.com/perarneng/gmail2s3/pkg/output"
	"github.com/perarneng/gmail2s3/pkg/syncer"
	"github.com/perarneng/gmail2s3/pkg/version"
	"github.com/perarneng/gmail2s3/pkg/webhook"
)

type fakeMailbox struct {
	ids       []string
	writer    interfaces.OutputWriter
	lastQuery interfaces.MessageQuery
}

func (m *fakeMailbox) Connect(ctx context.Context) error { return nil }

func (m *fakeMailbox) ListMessages(ctx context.Context, q interfaces.MessageQuery) ([]interfaces.MessageRef, error) {
	m.lastQuery = q
	refs := make([]interfaces.MessageRef, 0, len(m.ids))
	for _, id := range m.ids {
		refs = append(refs, interfaces.MessageRef{ID: id})
	}
	return refs, nil
}

func (m *fakeMailbox) GetMessage(ctx context.Context, ref interfaces.MessageRef) (*interfaces.EmailMessage, error) {
	return &interfaces.EmailMessage{ID: ref.ID, Timestamp: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}, nil
}

func (m *fakeMailbox) DownloadAttachments(ctx context.Context, email *interfaces.EmailMessage) ([]interfaces.Attachment, error) {
	return nil, nil
}

func (m *fakeMailbox) DumpMessage(ctx context.Context, email *interfaces.EmailMessage) (string, error) {
	return m.writer.WriteMessage(email)
}

func (m *fakeMailbox) AddLabels(ctx context.Context, email *interfaces.EmailMessage, labels []string) error {
	return nil
}

func (m *fakeMailbox) Forward(ctx context.Context, email *interfaces.EmailMessage, to, prefix string) error {
	return nil
}

func (m *fakeMailbox) ForwardRaw(ctx context.Context, ref interfaces.MessageRef, to string) error {
	return nil
}

type fakeStore struct {
	bucket string
	fail   bool
}

func (s *fakeStore) Upload(ctx context.Context, localPath, dest string) (interfaces.S3Dest, error) {
	if s.fail {
		return interfaces.S3Dest{}, &apperrors.StorageError{Op: "upload", Bucket: s.bucket, Key: dest, Err: errors.New("denied")}
	}
	return interfaces.S3Dest{Bucket: s.bucket, Path: dest}, nil
}

func (s *fakeStore) Copy(ctx context.Context, srcBucket, srcPath, destBucket, destPrefix string, nameOnly bool) (interfaces.S3Dest, interfaces.S3Dest, error) {
	path := srcPath
	if destPrefix != "" {
		path = destPrefix + srcPath
		if nameOnly {
			path = destPrefix + "y.txt"
		}
	}
	return interfaces.S3Dest{Bucket: srcBucket, Path: srcPath}, interfaces.S3Dest{Bucket: destBucket, Path: path}, nil
}

type fakeFactory struct {
	mailbox  *fakeMailbox
	store    *fakeStore
	writer   interfaces.OutputWriter
	gotS3    config.S3Config
	err      error
	gotCtx   context.Context
	ctxErrAt error // gotCtx.Err() when NewSyncer was called
}

func (f *fakeFactory) NewSyncer(ctx context.Context, q interfaces.MessageQuery, subs []webhook.Subscription, s3 config.S3Config) (*syncer.Syncer, error) {
	f.gotCtx, f.ctxErrAt = ctx, ctx.Err()
	if f.err != nil {
		return nil, f.err
	}
	f.gotS3 = s3
	f.store.bucket = s3.Bucket
	d, err := webhook.NewDispatcher(subs, logger.Discard(), webhook.Options{})
	if err != nil {
		return nil, err
	}
	return syncer.New(ctx, f.mailbox, f.store, f.writer, d, logger.Discard(), syncer.Options{Query: q})
}

func (f *fakeFactory) NewObjectStore(s3 config.S3Config) (interfaces.ObjectStore, error) {
	return f.store, nil
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *fakeFactory) {
	t.Helper()
	writer := output.NewFileWriter(t.TempDir(), logger.Discard())
	f := &fakeFactory{
		mailbox: &fakeMailbox{ids: []string{"m1", "m2"}, writer: writer},
		store:   &fakeStore{},
		writer:  writer,
	}
	if cfg == nil {
		cfg = &config.Config{S3: config.S3Config{Bucket: "archive", Prefix: "gmail/"}}
	}
	return NewServer(cfg, f, logger.Discard()), f
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp, out
}

func TestVersion(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for _, path := range []string{"/", "/version"} {
		resp, body := doJSON(t, s.App(), http.MethodGet, path, nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status %d", path, resp.StatusCode)
		}
		var got map[string]string
		if err := json.Unmarshal(body, &got); err != nil || got["gmail2s3-server"] != version.Version {
			t.Fatalf("%s: unexpected body %s", path, body)
		}
		if resp.Header.Get("X-Process-Time") == "" {
			t.Fatalf("%s: missing X-Process-Time", path)
		}
	}
}

func TestOpenAPIAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, nil)
	resp, body := doJSON(t, s.App(), http.MethodGet, "/openapi.json", nil, nil)
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte("/api/v1/sync_emails")) {
		t.Fatalf("unexpected openapi response %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, s.App(), http.MethodGet, "/metrics", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected metrics status %d", resp.StatusCode)
	}
}

func TestSyncEmails(t *testing.T) {
	s, f := newTestServer(t, nil)
	req := map[string]interface{}{
		"query":  map[string]interface{}{"labels": []string{"INBOX"}, "after": "2024-01-01"},
		"s3conf": map[string]interface{}{"bucket": "other"},
	}
	resp, body := doJSON(t, s.App(), http.MethodPost, "/api/v1/sync_emails", req, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var got SyncResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 2 || len(got.SyncedEmails) != 2 {
		t.Fatalf("unexpected response %+v", got)
	}
	if got.SyncedEmails[0].S3Paths[0] != (interfaces.S3Dest{Bucket: "other", Path: "2024/02/m1/m1.json"}) {
		t.Fatalf("unexpected dest %+v", got.SyncedEmails[0].S3Paths)
	}
	if f.gotS3.Bucket != "other" || f.gotS3.Prefix != "gmail/" {
		t.Fatalf("s3conf override not applied: %+v", f.gotS3)
	}
	if f.mailbox.lastQuery.After == nil || f.mailbox.lastQuery.Labels[0] != "INBOX" {
		t.Fatalf("query not forwarded: %+v", f.mailbox.lastQuery)
	}
}

func TestSyncEmailsInfo(t *testing.T) {
	s, _ := newTestServer(t, nil)
	resp, body := doJSON(t, s.App(), http.MethodPost, "/api/v1/sync_emails_info",
		map[string]interface{}{"query": map[string]interface{}{"labels": []string{"INBOX"}}}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var got syncer.InfoResult
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 2 || got.Query.Labels[0] != "INBOX" {
		t.Fatalf("unexpected info %+v", got)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       interface{}
		setup      func(f *fakeFactory)
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown-webhook-event",
			path:       "/api/v1/sync_emails",
			body:       map[string]interface{}{"webhooks": []map[string]interface{}{{"endpoint": "http://hook.local", "event": "deleted"}}},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "validation-error",
		},
		{
			name:       "auth",
			path:       "/api/v1/sync_emails_info",
			body:       map[string]interface{}{},
			setup:      func(f *fakeFactory) { f.err = &apperrors.AuthError{Reason: "no token"} },
			wantStatus: http.StatusUnauthorized,
			wantCode:   "auth-error",
		},
		{
			name:       "storage",
			path:       "/api/v1/sync_emails",
			body:       map[string]interface{}{},
			setup:      func(f *fakeFactory) { f.store.fail = true },
			wantStatus: http.StatusBadGateway,
			wantCode:   "storage-error",
		},
		{
			name:       "copy-without-dest",
			path:       "/api/v1/webhooks/upload_attachment/copy",
			body:       map[string]interface{}{"event": "upload_attachment", "params": map[string]interface{}{}},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "validation-error",
		},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			s, f := newTestServer(t, nil)
			if tc.setup != nil {
				tc.setup(f)
			}
			resp, body := doJSON(t, s.App(), http.MethodPost, tc.path, tc.body, nil)
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status %d want %d: %s", resp.StatusCode, tc.wantStatus, body)
			}
			var got ErrorResponse
			if err := json.Unmarshal(body, &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Error.Code != tc.wantCode || got.Error.Message == "" {
				t.Fatalf("unexpected error body %s", body)
			}
		})
	}
}

func TestCopyUploadedAttachment(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ev := webhook.Event{
		ID:    "evt-1",
		Event: webhook.EventUploadAttachment,
		Payload: webhook.Payload{
			Message:   interfaces.MessageRef{ID: "m1"},
			S3Uploads: []interfaces.S3Dest{{Bucket: "a", Path: "x/y.txt"}},
		},
		Params: map[string]interface{}{"s3_copy_dest": map[string]interface{}{"bucket": "b", "prefix": ""}},
	}
	resp, body := doJSON(t, s.App(), http.MethodPost, "/api/v1/webhooks/upload_attachment/copy", ev, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var got CopyResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Count != 1 {
		t.Fatalf("unexpected count %d", got.Count)
	}
	if got.Result[0].Source != (interfaces.S3Dest{Bucket: "a", Path: "x/y.txt"}) ||
		got.Result[0].Dest != (interfaces.S3Dest{Bucket: "b", Path: "x/y.txt"}) {
		t.Fatalf("unexpected copy result %+v", got.Result[0])
	}
}

func TestTokenRequired(t *testing.T) {
	cfg := &config.Config{
		Gmail2S3: config.AppConfig{RequireToken: true, Token: "s3cret"},
		S3:       config.S3Config{Bucket: "archive"},
	}
	s, _ := newTestServer(t, cfg)

	resp, _ := doJSON(t, s.App(), http.MethodPost, "/api/v1/sync_emails_info", map[string]interface{}{}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, s.App(), http.MethodPost, "/api/v1/sync_emails_info", map[string]interface{}{}, map[string]string{"token": "s3cret"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, s.App(), http.MethodGet, "/version", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("version must stay public, got %d", resp.StatusCode)
	}
}

func TestRequestContextLifetime(t *testing.T) {
	srv, f := newTestServer(t, nil)

	resp, _ := doJSON(t, srv.App(), http.MethodPost, "/api/v1/sync_emails_info", map[string]interface{}{}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if f.ctxErrAt != nil {
		t.Fatalf("context cancelled while handling: %v", f.ctxErrAt)
	}
	if !errors.Is(f.gotCtx.Err(), context.Canceled) {
		t.Fatalf("request context should be released when the request ends, got %v", f.gotCtx.Err())
	}

	srv.stop()
	doJSON(t, srv.App(), http.MethodPost, "/api/v1/sync_emails_info", map[string]interface{}{}, nil)
	if !errors.Is(f.ctxErrAt, context.Canceled) {
		t.Fatalf("requests after shutdown should see a cancelled context, got %v", f.ctxErrAt)
	}
}
