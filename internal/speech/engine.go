package speech

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultSpeechTimeout = 15 * time.Second

// Engine plays one utterance and returns when playback finished or ctx was
// canceled. Implementations must treat cancellation as a flush, not a fault.
type Engine interface {
	Speak(ctx context.Context, text string) error
}

// NopEngine discards utterances. Used when no speech backend is configured;
// the visual toast is unaffected.
type NopEngine struct{}

func (NopEngine) Speak(context.Context, string) error { return nil }

type speakRequest struct {
	Texto string `json:"texto"`
}

// HTTPEngine delegates synthesis to a speech service. The request blocks
// until the service reports playback completion, which keeps the announcer's
// duck window aligned with the audible speech.
type HTTPEngine struct {
	client   *resty.Client
	endpoint string
}

func NewHTTPEngine(endpoint string) (*HTTPEngine, error) {
	client := resty.New()
	client.SetTimeout(defaultSpeechTimeout)
	client.SetRetryCount(0)

	return NewHTTPEngineWithClient(endpoint, client)
}

func NewHTTPEngineWithClient(endpoint string, client *resty.Client) (*HTTPEngine, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("speech endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid speech endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	return &HTTPEngine{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (e *HTTPEngine) Speak(ctx context.Context, text string) error {
	if e == nil || e.client == nil {
		return fmt.Errorf("speech engine is not initialized")
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	response, err := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(speakRequest{Texto: text}).
		Post(e.endpoint)
	if err != nil {
		return fmt.Errorf("speech request failed: %w", err)
	}

	if code := response.StatusCode(); code < http.StatusOK || code >= http.StatusMultipleChoices {
		return fmt.Errorf("speech engine returned status %d", code)
	}

	return nil
}
