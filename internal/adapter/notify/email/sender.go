package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"adwallet/config"

	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type contact struct {
	Email string `json:"email"`
}

// sendRequest is the transactional template API payload.
type sendRequest struct {
	Sender     contact        `json:"sender"`
	To         []contact      `json:"to"`
	TemplateID int64          `json:"templateId"`
	Params     map[string]any `json:"params,omitempty"`
}

// Sender implements ports.EmailSender against a transactional template API.
type Sender struct {
	url        string
	apiKey     string
	from       string
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewSender creates a template email sender.
func NewSender(cfg config.EmailConfig, log zerolog.Logger) *Sender {
	return NewSenderWithClient(cfg, &http.Client{Timeout: cfg.Timeout}, log)
}

// NewSenderWithClient creates a sender using the given HTTP client.
func NewSenderWithClient(cfg config.EmailConfig, client HTTPClient, log zerolog.Logger) *Sender {
	return &Sender{
		url:        cfg.APIURL,
		apiKey:     cfg.APIKey,
		from:       cfg.Sender,
		httpClient: client,
		log:        log,
	}
}

// Send renders templateID with params and delivers it to address.
// Any non-2xx answer is an error.
func (s *Sender) Send(ctx context.Context, address string, templateID int64, params map[string]any) error {
	body, err := json.Marshal(sendRequest{
		Sender:     contact{Email: s.from},
		To:         []contact{{Email: address}},
		TemplateID: templateID,
		Params:     params,
	})
	if err != nil {
		return fmt.Errorf("encode email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email send: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	s.log.Debug().Int64("template_id", templateID).Int("status", resp.StatusCode).Msg("email sent")
	return nil
}
