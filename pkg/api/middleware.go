package api

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/perarneng/gmail2s3/pkg/apperrors"
	"github.com/perarneng/gmail2s3/pkg/metrics"
)

func processTime() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		c.Set("X-Process-Time", strconv.FormatFloat(time.Since(start).Seconds(), 'f', 6, 64))
		return err
	}
}

func requestMetrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			status = statusOf(err)
		}
		metrics.RecordHTTPRequestDuration(c.Method(), c.Route().Path, strconv.Itoa(status), time.Since(start))
		return err
	}
}

// requestContext gives each request a context derived from base that is
// cancelled when the handler returns. fasthttp does not report client
// disconnects, so base (server shutdown) is the only early cancellation.
func requestContext(base context.Context) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithCancel(base)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// checkToken rejects requests whose "token" header does not match.
func checkToken(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" || c.Get("token") != token {
			return &apperrors.AuthError{Reason: "NoAuth"}
		}
		return c.Next()
	}
}

func statusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return apperrors.StatusCode(err)
}
