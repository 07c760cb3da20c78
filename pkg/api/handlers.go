package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/perarneng/gmail2s3/pkg/apperrors"
	"github.com/perarneng/gmail2s3/pkg/config"
	"github.com/perarneng/gmail2s3/pkg/interfaces"
	"github.com/perarneng/gmail2s3/pkg/openapi"
	"github.com/perarneng/gmail2s3/pkg/syncer"
	"github.com/perarneng/gmail2s3/pkg/validate"
	"github.com/perarneng/gmail2s3/pkg/version"
	"github.com/perarneng/gmail2s3/pkg/webhook"
)

type SyncRequest struct {
	Query     interfaces.MessageQuery `json:"query"`
	Webhooks  []webhook.Subscription  `json:"webhooks" validate:"dive"`
	S3Conf    config.S3Override       `json:"s3conf"`
	FlagLabel string                  `json:"flag_label"`
}

type SyncResponse struct {
	SyncedEmails []syncer.SyncResult `json:"synced_emails" yaml:"synced_emails"`
	Total        int                 `json:"total" yaml:"total"`
}

type CopyResult struct {
	Source interfaces.S3Dest `json:"source"`
	Dest   interfaces.S3Dest `json:"dest"`
}

type CopyResponse struct {
	Count  int          `json:"count"`
	Result []CopyResult `json:"result"`
}

func (s *Server) version(c *fiber.Ctx) error {
	return c.JSON(version.Current())
}

func (s *Server) openapi(c *fiber.Ctx) error {
	doc, err := openapi.Document(version.Version)
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

func (s *Server) syncEmails(c *fiber.Ctx) error {
	req, err := parseSyncRequest(c)
	if err != nil {
		return err
	}
	sy, err := s.factory.NewSyncer(c.UserContext(), req.Query, req.Webhooks, s.cfg.WithS3Overrides(req.S3Conf))
	if err != nil {
		return err
	}
	results, err := sy.SyncAll(c.UserContext(), req.FlagLabel)
	if err != nil {
		return withDetails(err, SyncResponse{SyncedEmails: results, Total: len(results)})
	}
	return c.JSON(SyncResponse{SyncedEmails: results, Total: len(results)})
}

func (s *Server) syncEmailsInfo(c *fiber.Ctx) error {
	req, err := parseSyncRequest(c)
	if err != nil {
		return err
	}
	sy, err := s.factory.NewSyncer(c.UserContext(), req.Query, req.Webhooks, s.cfg.WithS3Overrides(req.S3Conf))
	if err != nil {
		return err
	}
	info, err := sy.Info(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(info)
}

// copyUploadedAttachment is itself a webhook receiver: it copies every object
// listed in payload.s3_uploads to params.s3_copy_dest.
func (s *Server) copyUploadedAttachment(c *fiber.Ctx) error {
	var ev webhook.Event
	if err := c.BodyParser(&ev); err != nil {
		return &apperrors.ValidationError{Field: "body", Message: err.Error()}
	}
	dest, err := ev.CopyDest()
	if err != nil {
		return err
	}
	store, err := s.factory.NewObjectStore(s.cfg.S3)
	if err != nil {
		return err
	}

	resp := CopyResponse{Result: []CopyResult{}}
	for _, up := range ev.Payload.S3Uploads {
		src, dst, err := store.Copy(c.UserContext(), up.Bucket, up.Path, dest.Bucket, dest.Prefix, dest.NameOnly)
		if err != nil {
			return withDetails(err, resp)
		}
		resp.Result = append(resp.Result, CopyResult{Source: src, Dest: dst})
		resp.Count++
	}
	return c.JSON(resp)
}

func parseSyncRequest(c *fiber.Ctx) (SyncRequest, error) {
	var req SyncRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return req, &apperrors.ValidationError{Field: "body", Message: err.Error()}
		}
	}
	if err := validate.Struct(req); err != nil {
		return req, err
	}
	return req, nil
}
