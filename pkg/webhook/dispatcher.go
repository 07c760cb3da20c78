package webhook

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/perarneng/gmail2s3/pkg/apperrors"
	"github.com/perarneng/gmail2s3/pkg/interfaces"
	"github.com/perarneng/gmail2s3/pkg/metrics"
	"github.com/perarneng/gmail2s3/pkg/validate"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseBody = 4096
)

type Options struct {
	Timeout time.Duration
	// Transport overrides the HTTP transport (tests). TLS settings are then left untouched.
	Transport http.RoundTripper
}

type Dispatcher struct {
	subs     map[EventType][]Subscription
	secure   *http.Client
	insecure *http.Client
	logger   interfaces.Logger
	newID    func() string
}

// NewDispatcher validates and groups subs by event.
func NewDispatcher(subs []Subscription, logger interfaces.Logger, opts Options) (*Dispatcher, error) {
	grouped := make(map[EventType][]Subscription)
	for i, sub := range subs {
		if _, err := ParseEventType(string(sub.Event)); err != nil {
			return nil, &apperrors.ValidationError{
				Field:   fmt.Sprintf("webhooks[%d].event", i),
				Message: fmt.Sprintf("unknown webhook event %q", sub.Event),
			}
		}
		if err := validate.Struct(sub); err != nil {
			return nil, err
		}
		grouped[sub.Event] = append(grouped[sub.Event], sub)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	d := &Dispatcher{
		subs:   grouped,
		logger: logger,
		newID:  func() string { return uuid.New().String() },
	}
	if opts.Transport != nil {
		d.secure = &http.Client{Timeout: timeout, Transport: opts.Transport}
		d.insecure = d.secure
		return d, nil
	}
	d.secure = &http.Client{Timeout: timeout}
	insecure := http.DefaultTransport.(*http.Transport).Clone()
	insecure.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in per subscription
	d.insecure = &http.Client{Timeout: timeout, Transport: insecure}
	return d, nil
}

func (d *Dispatcher) Subscriptions(event EventType) []Subscription {
	return d.subs[event]
}

// Dispatch POSTs one event to every subscriber of event. A failing subscriber
// does not stop delivery to the others; all failures are joined.
func (d *Dispatcher) Dispatch(ctx context.Context, event EventType, ref interfaces.MessageRef, attachments []interfaces.Attachment, dests []interfaces.S3Dest) error {
	subs := d.subs[event]
	if len(subs) == 0 {
		return nil
	}
	if attachments == nil {
		attachments = []interfaces.Attachment{}
	}
	if dests == nil {
		dests = []interfaces.S3Dest{}
	}

	var errs []error
	for _, sub := range subs {
		body := Event{
			ID:    d.newID(),
			Event: event,
			Payload: Payload{
				Message:     ref,
				Attachments: attachments,
				S3Uploads:   dests,
			},
			Params: sub.Params,
		}
		if body.Params == nil {
			body.Params = map[string]interface{}{}
		}
		if err := d.send(ctx, sub, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) send(ctx context.Context, sub Subscription, body Event) error {
	start := time.Now()
	hookErr := func(status int, respBody string, err error) error {
		metrics.RecordWebhookDelivery(string(body.Event), "failed", time.Since(start))
		return &apperrors.WebHookError{Endpoint: sub.Endpoint, Event: string(body.Event), Status: status, Body: respBody, Err: err}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return hookErr(0, "", err)
	}
	d.logger.Debug(fmt.Sprintf("Webhook %s -> %s: %s", body.Event, sub.Endpoint, data))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(data))
	if err != nil {
		return hookErr(0, "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range sub.Headers {
		req.Header.Set(k, v)
	}
	if sub.Token != "" {
		req.Header.Set("Authorization", sub.Token)
	}

	client := d.secure
	if !sub.Verify() {
		client = d.insecure
	}
	resp, err := client.Do(req)
	if err != nil {
		return hookErr(0, "", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	d.logger.Info(fmt.Sprintf("Webhook %s -> %s: %d %s", body.Event, sub.Endpoint, resp.StatusCode, bytes.TrimSpace(respBody)))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return hookErr(resp.StatusCode, string(respBody), nil)
	}
	metrics.RecordWebhookDelivery(string(body.Event), "success", time.Since(start))
	return nil
}
