package syncer

import (
	"context"
	"fmt"

	"github.com/perarneng/gmail2s3/pkg/metrics"
)

type ForwardResult struct {
	MessageID string `json:"message_id" yaml:"message_id"`
}

// ForwardAll forwards every matching message to `to`, either recomposed with
// subjectPrefix or raw (only the recipients change), waiting the forward delay
// between messages. flagLabel, when set, is applied to each forwarded message.
func (s *Syncer) ForwardAll(ctx context.Context, to, subjectPrefix, flagLabel string, raw bool) ([]ForwardResult, error) {
	refs, err := s.mailbox.ListMessages(ctx, s.query)
	if err != nil {
		return nil, err
	}
	s.logger.Info(fmt.Sprintf("Found %d messages to forward to %s", len(refs), to))

	mode := "compose"
	if raw {
		mode = "raw"
	}
	var labels []string
	if flagLabel != "" {
		labels = []string{flagLabel}
	}

	results := make([]ForwardResult, 0, len(refs))
	for i, ref := range refs {
		if i > 0 {
			if err := s.sleep(ctx, s.forwardDelay); err != nil {
				return results, err
			}
		}
		s.logger.Info(fmt.Sprintf("Forwarding message %d/%d (ID: %s)", i+1, len(refs), ref.ID))

		email, err := s.mailbox.GetMessage(ctx, ref)
		if err == nil {
			if raw {
				err = s.mailbox.ForwardRaw(ctx, email.Ref(), to)
			} else {
				err = s.mailbox.Forward(ctx, email, to, subjectPrefix)
			}
		}
		if err == nil {
			err = s.mailbox.AddLabels(ctx, email, labels)
		}
		metrics.IncrementMessagesForwarded(mode, metrics.Status(err))
		if err != nil {
			s.logger.Error(fmt.Sprintf("Failed to forward message %s: %v", ref.ID, err))
			return results, err
		}
		results = append(results, ForwardResult{MessageID: ref.ID})
	}
	s.logger.Info(fmt.Sprintf("Forward completed. Forwarded: %d", len(results)))
	return results, nil
}
