package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/perarneng/gmail2s3/pkg/apperrors"
)

// Connect authenticates with the stored token and builds the Gmail service.
// It never starts an interactive flow; run Login for that.
func (c *Client) Connect(ctx context.Context) error {
	if c.service != nil {
		return nil
	}
	config, err := c.oauthConfig()
	if err != nil {
		return err
	}

	tok, err := tokenFromFile(c.opts.TokenFile)
	if err != nil {
		return &apperrors.AuthError{Reason: fmt.Sprintf("no usable token in %s, run gmail-login", c.opts.TokenFile), Err: err}
	}
	if !tok.Valid() && tok.RefreshToken == "" {
		return &apperrors.AuthError{Reason: "token expired and has no refresh token, run gmail-login"}
	}

	return c.connectWithToken(ctx, config, tok)
}

// Login runs the consent flow: it prints the authorization URL to out, reads
// the code from in, stores the token and connects.
func (c *Client) Login(ctx context.Context, in io.Reader, out io.Writer) error {
	config, err := c.oauthConfig()
	if err != nil {
		return err
	}
	tok, err := c.getTokenFromWeb(ctx, config, in, out)
	if err != nil {
		return &apperrors.AuthError{Reason: "unable to get token from web", Err: err}
	}
	if err := saveToken(c.opts.TokenFile, tok); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved credential file to: %s\n", c.opts.TokenFile)
	return c.connectWithToken(ctx, config, tok)
}

func (c *Client) oauthConfig() (*oauth2.Config, error) {
	if c.opts.ClientSecretFile == "" {
		return nil, &apperrors.AuthError{Reason: "gmail client_secret file is not configured"}
	}
	b, err := os.ReadFile(c.opts.ClientSecretFile)
	if err != nil {
		return nil, &apperrors.AuthError{Reason: "unable to read client secret file", Err: err}
	}
	config, err := google.ConfigFromJSON(b, gmail.GmailModifyScope)
	if err != nil {
		return nil, &apperrors.AuthError{Reason: "unable to parse client secret file", Err: err}
	}
	return config, nil
}

func (c *Client) connectWithToken(ctx context.Context, config *oauth2.Config, tok *oauth2.Token) error {
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	client := config.Client(ctx, tok)
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return &apperrors.ProviderError{Op: "connect", Err: err}
	}
	c.service = srv
	return nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	if file == "" {
		return nil, errors.New("gmail token file is not configured")
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return tok, nil
}

func (c *Client) getTokenFromWeb(ctx context.Context, config *oauth2.Config, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(out, "Go to the following link in your browser then type the authorization code: \n%v\n", authURL)

	var authCode string
	if _, err := fmt.Fscan(in, &authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}

	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	if path == "" {
		return errors.New("gmail token file is not configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	return nil
}
