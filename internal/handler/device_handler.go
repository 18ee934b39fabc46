package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gymaccess/access-panel/internal/device"
	"github.com/gymaccess/access-panel/internal/domain"
	"github.com/gymaccess/access-panel/internal/observability"
)

// DeviceCommander sends manual commands to access-control hardware.
type DeviceCommander interface {
	Send(ctx context.Context, command, deviceID string) (*device.Ack, error)
}

type DeviceHandler struct {
	commander DeviceCommander
	metrics   *observability.Metrics
}

func NewDeviceHandler(commander DeviceCommander, metrics *observability.Metrics) (*DeviceHandler, error) {
	if commander == nil {
		return nil, fmt.Errorf("device commander is required")
	}
	return &DeviceHandler{commander: commander, metrics: metrics}, nil
}

func RegisterDeviceRoutes(router fiber.Router, commander DeviceCommander, metrics *observability.Metrics) error {
	h, err := NewDeviceHandler(commander, metrics)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/devices/:deviceId/commands", h.SendCommand)

	return nil
}

type sendCommandRequest struct {
	Command string `json:"command"`
}

type sendCommandResponse struct {
	DeviceID   string `json:"deviceId"`
	Command    string `json:"command"`
	StatusCode int    `json:"statusCode"`
}

func (h *DeviceHandler) SendCommand(c *fiber.Ctx) error {
	deviceID := strings.TrimSpace(c.Params("deviceId"))

	var req sendCommandRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	command := strings.ToLower(strings.TrimSpace(req.Command))

	ctx := c.UserContext()
	if requestID, ok := c.Locals("requestid").(string); ok && requestID != "" {
		ctx = observability.WithCorrelationID(ctx, requestID)
	}

	ack, err := h.commander.Send(ctx, command, deviceID)
	if err != nil {
		var commandErr *device.CommandError
		switch {
		case errors.Is(err, domain.ErrValidation),
			errors.Is(err, domain.ErrNotFound),
			errors.Is(err, domain.ErrRateLimited):
			return toHTTPError(err)
		case errors.As(err, &commandErr):
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		default:
			return err
		}
	}

	h.metrics.IncDeviceCommand(command)

	return c.Status(fiber.StatusAccepted).JSON(sendCommandResponse{
		DeviceID:   deviceID,
		Command:    command,
		StatusCode: ack.StatusCode,
	})
}
