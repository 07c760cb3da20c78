package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStatus(t *testing.T) {
	if got := Status(nil); got != "success" {
		t.Fatalf("expected success, got %q", got)
	}
	if got := Status(errors.New("boom")); got != "failed" {
		t.Fatalf("expected failed, got %q", got)
	}
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(MessagesSynced.WithLabelValues("success"))
	IncrementMessagesSynced("success")
	if got := testutil.ToFloat64(MessagesSynced.WithLabelValues("success")); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}

	before = testutil.ToFloat64(WebhookDeliveries.WithLabelValues("synced_email", "failed"))
	RecordWebhookDelivery("synced_email", "failed", 15*time.Millisecond)
	if got := testutil.ToFloat64(WebhookDeliveries.WithLabelValues("synced_email", "failed")); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}

	before = testutil.ToFloat64(S3Uploads.WithLabelValues("attachment", "success"))
	IncrementS3Uploads("attachment", "success")
	if got := testutil.ToFloat64(S3Uploads.WithLabelValues("attachment", "success")); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}
}
