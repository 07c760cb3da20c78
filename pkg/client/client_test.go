package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/perarneng/gmail2s3/pkg/api"
	"github.com/perarneng/gmail2s3/pkg/interfaces"
	"github.com/perarneng/gmail2s3/pkg/webhook"
)

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", Options{Token: "tok", Headers: map[string]string{"X-Team": "ops"}, Verify: true})
}

func TestVersion(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/version" || r.Method != http.MethodGet {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "tok" || r.Header.Get("token") != "tok" || r.Header.Get("X-Team") != "ops" {
			t.Errorf("missing headers: %v", r.Header)
		}
		_, _ = w.Write([]byte(`{"gmail2s3-server":"9.9.9"}`))
	})
	info, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if info.Server != "9.9.9" {
		t.Fatalf("unexpected version %+v", info)
	}
}

func TestSyncEmails(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req api.SyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if r.URL.Path != "/api/v1/sync_emails" || req.FlagLabel != "synced" || req.Query.Labels[0] != "INBOX" {
			t.Errorf("unexpected request %s %+v", r.URL.Path, req)
		}
		_, _ = w.Write([]byte(`{"synced_emails":[{"message_id":"m1","s3_paths":[{"bucket":"b","path":"p"}]}],"total":1}`))
	})
	resp, err := c.SyncEmails(context.Background(), api.SyncRequest{
		Query:     interfaces.NewMessageQuery(nil, nil, []string{"INBOX"}, nil, nil, nil),
		FlagLabel: "synced",
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if resp.Total != 1 || resp.SyncedEmails[0].S3Paths[0].Path != "p" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestSyncEmailsInfo(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total":3,"query":{"labels":["INBOX"],"exclude_labels":[],"sender":[],"to":[]}}`))
	})
	info, err := c.SyncEmailsInfo(context.Background(), api.SyncRequest{})
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Total != 3 || info.Query.Labels[0] != "INBOX" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestCopyAttachment(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var ev webhook.Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		if ev.Event != webhook.EventUploadAttachment || len(ev.Payload.S3Uploads) != 1 {
			t.Errorf("unexpected event %+v", ev)
		}
		_, _ = w.Write([]byte(`{"count":1,"result":[{"source":{"bucket":"a","path":"x/y.txt"},"dest":{"bucket":"b","path":"x/y.txt"}}]}`))
	})
	resp, err := c.CopyAttachment(context.Background(), webhook.Event{
		Event:   webhook.EventUploadAttachment,
		Payload: webhook.Payload{S3Uploads: []interfaces.S3Dest{{Bucket: "a", Path: "x/y.txt"}}},
	})
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if resp.Count != 1 || resp.Result[0].Dest.Bucket != "b" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantMsg  string
	}{
		{name: "structured", status: http.StatusUnauthorized, body: `{"error":{"code":"auth-error","message":"gmail auth: NoAuth"}}`, wantCode: "auth-error", wantMsg: "gmail auth: NoAuth"},
		{name: "plain", status: http.StatusBadGateway, body: "upstream down", wantMsg: "upstream down"},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.Version(context.Background())
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Status != tc.status || apiErr.Code != tc.wantCode || apiErr.Message != tc.wantMsg {
				t.Fatalf("unexpected error %+v", apiErr)
			}
		})
	}
}
