// Package syncer drives the per-message pipelines: Gmail -> scratch dir -> S3
// with webhook notifications, and Gmail -> Gmail forwarding.
//
// Messages are processed one at a time in listing order. A failure aborts the
// batch; side effects already performed (uploads, webhooks) are not undone.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/perarneng/gmail2s3/pkg/apperrors"
	"github.com/perarneng/gmail2s3/pkg/interfaces"
	"github.com/perarneng/gmail2s3/pkg/metrics"
	"github.com/perarneng/gmail2s3/pkg/webhook"
)

const DefaultForwardDelay = 2 * time.Second

// Notifier delivers webhook events. *webhook.Dispatcher implements it.
type Notifier interface {
	Dispatch(ctx context.Context, event webhook.EventType, ref interfaces.MessageRef, attachments []interfaces.Attachment, dests []interfaces.S3Dest) error
}

type noopNotifier struct{}

func (noopNotifier) Dispatch(context.Context, webhook.EventType, interfaces.MessageRef, []interfaces.Attachment, []interfaces.S3Dest) error {
	return nil
}

type Options struct {
	Query interfaces.MessageQuery
	// OutLabels are applied to every synced message in addition to the flag label.
	OutLabels    []string
	ForwardDelay time.Duration
}

type Syncer struct {
	mailbox  interfaces.GmailClient
	store    interfaces.ObjectStore
	writer   interfaces.OutputWriter
	notifier Notifier
	logger   interfaces.Logger

	query        interfaces.MessageQuery
	outLabels    []string
	forwardDelay time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

type SyncResult struct {
	MessageID string              `json:"message_id" yaml:"message_id"`
	S3Paths   []interfaces.S3Dest `json:"s3_paths" yaml:"s3_paths"`
}

type InfoResult struct {
	Total int                     `json:"total" yaml:"total"`
	Query interfaces.MessageQuery `json:"query" yaml:"query"`
}

// New connects the mailbox and returns a ready orchestrator. store and
// notifier may be nil for forward-only use.
func New(ctx context.Context, mailbox interfaces.GmailClient, store interfaces.ObjectStore, writer interfaces.OutputWriter, notifier Notifier, logger interfaces.Logger, opts Options) (*Syncer, error) {
	if err := mailbox.Connect(ctx); err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	delay := opts.ForwardDelay
	if delay < 0 {
		delay = 0
	}
	return &Syncer{
		mailbox:      mailbox,
		store:        store,
		writer:       writer,
		notifier:     notifier,
		logger:       logger,
		query:        opts.Query.Normalized(),
		outLabels:    opts.OutLabels,
		forwardDelay: delay,
		sleep:        sleepContext,
	}, nil
}

func (s *Syncer) Query() interfaces.MessageQuery { return s.query }

// Info counts matching messages without touching them.
func (s *Syncer) Info(ctx context.Context) (InfoResult, error) {
	refs, err := s.mailbox.ListMessages(ctx, s.query)
	if err != nil {
		return InfoResult{}, err
	}
	return InfoResult{Total: len(refs), Query: s.query}, nil
}

// SyncAll syncs every matching message. On failure the results synced so far
// are returned together with the error.
func (s *Syncer) SyncAll(ctx context.Context, flagLabel string) ([]SyncResult, error) {
	if s.store == nil {
		return nil, &apperrors.ValidationError{Field: "s3.bucket", Message: "no S3 bucket configured"}
	}
	refs, err := s.mailbox.ListMessages(ctx, s.query)
	if err != nil {
		return nil, err
	}
	s.logger.Info(fmt.Sprintf("Found %d messages to sync", len(refs)))

	results := make([]SyncResult, 0, len(refs))
	var all []interfaces.S3Dest
	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		s.logger.Info(fmt.Sprintf("Processing message %d/%d (ID: %s)", i+1, len(refs), ref.ID))
		res, err := s.SyncOne(ctx, ref, flagLabel)
		if err != nil {
			s.logger.Error(fmt.Sprintf("Failed to sync message %s: %v", ref.ID, err))
			return results, err
		}
		results = append(results, res)
		all = append(all, res.S3Paths...)
	}

	if err := s.notifier.Dispatch(ctx, webhook.EventSyncCompleted, interfaces.MessageRef{}, nil, all); err != nil {
		return results, err
	}
	s.logger.Info(fmt.Sprintf("Sync completed. Synced: %d, uploaded objects: %d", len(results), len(all)))
	return results, nil
}

// SyncOne runs fetch, attachment uploads, raw dump upload, webhooks and
// labelling for one message.
func (s *Syncer) SyncOne(ctx context.Context, ref interfaces.MessageRef, flagLabel string) (res SyncResult, err error) {
	defer func() { metrics.IncrementMessagesSynced(metrics.Status(err)) }()

	email, err := s.mailbox.GetMessage(ctx, ref)
	if err != nil {
		return SyncResult{}, err
	}
	ref = email.Ref()

	attachments, err := s.mailbox.DownloadAttachments(ctx, email)
	if err != nil {
		return SyncResult{}, err
	}

	dests := make([]interfaces.S3Dest, 0, len(attachments)+1)
	for _, att := range attachments {
		dest, err := s.upload(ctx, att.LocalPath, "attachment")
		if err != nil {
			return SyncResult{}, err
		}
		dests = append(dests, dest)
		err = s.notifier.Dispatch(ctx, webhook.EventUploadAttachment, ref, []interfaces.Attachment{att}, []interfaces.S3Dest{dest})
		if err != nil {
			return SyncResult{}, err
		}
	}

	dumpPath, err := s.mailbox.DumpMessage(ctx, email)
	if err != nil {
		return SyncResult{}, err
	}
	dest, err := s.upload(ctx, dumpPath, "message")
	if err != nil {
		return SyncResult{}, err
	}
	dests = append(dests, dest)

	if err := s.notifier.Dispatch(ctx, webhook.EventSyncedEmail, ref, attachments, dests); err != nil {
		return SyncResult{}, err
	}
	if err := s.mailbox.AddLabels(ctx, email, s.labels(flagLabel)); err != nil {
		return SyncResult{}, err
	}
	s.logger.Debug(fmt.Sprintf("Synced message %s (%d objects)", ref.ID, len(dests)))
	return SyncResult{MessageID: ref.ID, S3Paths: dests}, nil
}

// upload stores localPath under its path relative to the scratch root.
func (s *Syncer) upload(ctx context.Context, localPath, kind string) (interfaces.S3Dest, error) {
	key, err := s.writer.RelativeKey(localPath)
	if err != nil {
		return interfaces.S3Dest{}, err
	}
	dest, err := s.store.Upload(ctx, localPath, key)
	metrics.IncrementS3Uploads(kind, metrics.Status(err))
	return dest, err
}

func (s *Syncer) labels(flagLabel string) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range append([]string{flagLabel}, s.outLabels...) {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
