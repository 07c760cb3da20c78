package syncer

import (
	"context"

	"github.com/perarneng/gmail2s3/pkg/config"
	"github.com/perarneng/gmail2s3/pkg/gmail"
	"github.com/perarneng/gmail2s3/pkg/interfaces"
	"github.com/perarneng/gmail2s3/pkg/output"
	"github.com/perarneng/gmail2s3/pkg/storage"
	"github.com/perarneng/gmail2s3/pkg/webhook"
)

// Factory builds a fresh set of clients per invocation. The web API calls it
// once per request, the CLI once per command.
type Factory interface {
	NewSyncer(ctx context.Context, query interfaces.MessageQuery, subs []webhook.Subscription, s3 config.S3Config) (*Syncer, error)
	NewObjectStore(s3 config.S3Config) (interfaces.ObjectStore, error)
}

type DefaultFactory struct {
	Config *config.Config
	Logger interfaces.Logger
}

func NewFactory(cfg *config.Config, logger interfaces.Logger) *DefaultFactory {
	return &DefaultFactory{Config: cfg, Logger: logger}
}

// NewSyncer wires Gmail, S3 and webhooks together and connects to Gmail.
// Without a bucket the syncer can still list and forward.
func (f *DefaultFactory) NewSyncer(ctx context.Context, query interfaces.MessageQuery, subs []webhook.Subscription, s3 config.S3Config) (*Syncer, error) {
	writer := output.NewFileWriter(f.Config.Gmail2S3.DownloadDir, f.Logger)
	if err := writer.ValidateOutputDir(writer.Root()); err != nil {
		return nil, err
	}
	mailbox := gmail.NewClient(f.Config.GmailOptions(), writer, f.Logger)

	var store interfaces.ObjectStore
	if s3.Bucket != "" {
		var err error
		if store, err = f.NewObjectStore(s3); err != nil {
			return nil, err
		}
	}
	dispatcher, err := webhook.NewDispatcher(subs, f.Logger, webhook.Options{})
	if err != nil {
		return nil, err
	}
	return New(ctx, mailbox, store, writer, dispatcher, f.Logger, Options{
		Query:        query,
		OutLabels:    f.Config.Gmail.OutLabels,
		ForwardDelay: f.Config.Gmail2S3.ForwardDelay,
	})
}

func (f *DefaultFactory) NewObjectStore(s3 config.S3Config) (interfaces.ObjectStore, error) {
	return storage.NewS3Client(s3.StorageOptions(), f.Logger.With("bucket", s3.Bucket))
}
