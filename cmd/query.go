package cmd

import (
	"fmt"

	"github.com/perarneng/gmail2s3/pkg/config"
	"github.com/perarneng/gmail2s3/pkg/interfaces"
	"github.com/perarneng/gmail2s3/pkg/webhook"
)

// queryFlags are shared by gmail-sync and gmail-forward.
type queryFlags struct {
	labels        []string
	excludeLabels []string
	sender        []string
	to            []string
	before        string
	after         string
}

// build turns the flags into a query. Without -l the configured in_labels apply.
func (f *queryFlags) build(cfg *config.Config) (interfaces.MessageQuery, error) {
	var after, before *interfaces.Timestamp
	if f.after != "" {
		ts, err := interfaces.ParseTimestamp(f.after)
		if err != nil {
			return interfaces.MessageQuery{}, fmt.Errorf("--after: %w", err)
		}
		after = &ts
	}
	if f.before != "" {
		ts, err := interfaces.ParseTimestamp(f.before)
		if err != nil {
			return interfaces.MessageQuery{}, fmt.Errorf("--before: %w", err)
		}
		before = &ts
	}
	labels := f.labels
	if len(labels) == 0 {
		labels = cfg.Gmail.InLabels
	}
	return interfaces.NewMessageQuery(after, before, labels, f.excludeLabels, f.sender, f.to), nil
}

// loadWebhooks merges every --webhooks value and decodes its "webhooks" list.
func loadWebhooks(values []string) ([]webhook.Subscription, error) {
	merged := map[string]interface{}{}
	for _, v := range values {
		vars, err := config.LoadVariables(v)
		if err != nil {
			return nil, fmt.Errorf("--webhooks: %w", err)
		}
		for k, val := range vars {
			merged[k] = val
		}
	}
	raw, ok := merged["webhooks"]
	if !ok {
		return nil, nil
	}
	var subs []webhook.Subscription
	if err := config.Decode(raw, &subs); err != nil {
		return nil, fmt.Errorf("--webhooks: %w", err)
	}
	return subs, nil
}
