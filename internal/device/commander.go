package device

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gymaccess/access-panel/internal/domain"
	"github.com/gymaccess/access-panel/internal/observability"
	"github.com/gymaccess/access-panel/internal/ratelimit"
	"go.uber.org/zap"
)

const defaultCommandTimeout = 10 * time.Second

// Commands understood by the door controller firmware.
const (
	CommandOpenDoor = "abrir_puerta"
	CommandSync     = "sincronizar"
)

type commandRequest struct {
	Comando     string `json:"comando"`
	Dispositivo string `json:"dispositivo"`
}

// Ack is the controller's acknowledgment of a delivered command.
type Ack struct {
	StatusCode int
	Body       string
}

// Commander sends manual operator commands to access-control hardware.
type Commander struct {
	client   *resty.Client
	endpoint string
	limiter  ratelimit.RateLimiter
	logger   *zap.Logger
}

func NewCommander(endpoint string, limiter ratelimit.RateLimiter, logger *zap.Logger) (*Commander, error) {
	client := resty.New()
	client.SetTimeout(defaultCommandTimeout)
	client.SetRetryCount(0)

	return NewCommanderWithClient(endpoint, limiter, logger, client)
}

func NewCommanderWithClient(endpoint string, limiter ratelimit.RateLimiter, logger *zap.Logger, client *resty.Client) (*Commander, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("command endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid command endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultCommandTimeout)
	}
	client.SetRetryCount(0)

	return &Commander{
		client:   client,
		endpoint: trimmedEndpoint,
		limiter:  limiter,
		logger:   logger,
	}, nil
}

// OpenDoor asks the controller to release the entrance door.
func (c *Commander) OpenDoor(ctx context.Context, deviceID string) (*Ack, error) {
	return c.Send(ctx, CommandOpenDoor, deviceID)
}

// Sync asks the controller to re-download its member roster.
func (c *Commander) Sync(ctx context.Context, deviceID string) (*Ack, error) {
	return c.Send(ctx, CommandSync, deviceID)
}

func (c *Commander) Send(ctx context.Context, command, deviceID string) (*Ack, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("commander is not initialized")
	}

	trimmedDevice := strings.TrimSpace(deviceID)
	if trimmedDevice == "" {
		return nil, fmt.Errorf("%w: device id is required", domain.ErrValidation)
	}
	if command != CommandOpenDoor && command != CommandSync {
		return nil, fmt.Errorf("%w: unknown command %q", domain.ErrValidation, command)
	}

	if c.limiter != nil {
		allowed, err := c.limiter.Allow(ctx, trimmedDevice)
		if err != nil {
			return nil, fmt.Errorf("failed to check device rate limit: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%w: device %s", domain.ErrRateLimited, trimmedDevice)
		}
	}

	reqBody := commandRequest{
		Comando:     command,
		Dispositivo: trimmedDevice,
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(c.endpoint)
	if err != nil {
		return nil, &CommandError{
			Message:   "command request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &CommandError{
			Message:   "controller returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		observability.WithContextLogger(c.logger, ctx).Info("device command acknowledged",
			zap.String("command", command),
			zap.String("device_id", trimmedDevice),
			zap.Int("status_code", statusCode),
		)
		return &Ack{
			StatusCode: statusCode,
			Body:       responseBody,
		}, nil
	}

	return nil, &CommandError{
		StatusCode: statusCode,
		Message:    commandErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func commandErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("controller returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
