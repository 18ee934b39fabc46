package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gymaccess/access-panel/internal/domain"
	"github.com/gymaccess/access-panel/internal/store"
	"github.com/gymaccess/access-panel/internal/toast"
)

// NotificationStore is the subset of the event store the API exposes.
type NotificationStore interface {
	Snapshot() store.Snapshot
	MarkViewed()
	ClearAll()
}

// ToastBoard is the subset of the toast presenter the API exposes.
type ToastBoard interface {
	Active() []toast.Toast
	Dismiss(id string) bool
}

type PanelHandler struct {
	store  NotificationStore
	toasts ToastBoard
}

func NewPanelHandler(notifications NotificationStore, toasts ToastBoard) (*PanelHandler, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification store is required")
	}
	if toasts == nil {
		return nil, fmt.Errorf("toast board is required")
	}
	return &PanelHandler{store: notifications, toasts: toasts}, nil
}

func RegisterPanelRoutes(router fiber.Router, notifications NotificationStore, toasts ToastBoard) error {
	h, err := NewPanelHandler(notifications, toasts)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/notifications", h.ListNotifications)
	v1.Post("/notifications/viewed", h.MarkViewed)
	v1.Delete("/notifications", h.ClearNotifications)
	v1.Get("/toasts", h.ListToasts)
	v1.Post("/toasts/:id/dismiss", h.DismissToast)

	return nil
}

type eventResponse struct {
	ID                string `json:"id"`
	SubjectName       string `json:"subjectName"`
	Message           string `json:"message"`
	PhotoRef          string `json:"photoRef,omitempty"`
	AccessGranted     bool   `json:"accessGranted"`
	MembershipLabel   string `json:"membershipLabel,omitempty"`
	SessionsRemaining *int   `json:"sessionsRemaining,omitempty"`
	DaysRemaining     *int   `json:"daysRemaining,omitempty"`
	OccurredAtLabel   string `json:"occurredAt,omitempty"`
}

type notificationsResponse struct {
	Notifications []eventResponse `json:"notifications"`
	HasUnseen     bool            `json:"hasUnseen"`
}

type toastResponse struct {
	ID       string        `json:"id"`
	Severity string        `json:"severity"`
	ShownAt  time.Time     `json:"shownAt"`
	Event    eventResponse `json:"event"`
}

func (h *PanelHandler) ListNotifications(c *fiber.Ctx) error {
	snapshot := h.store.Snapshot()

	events := make([]eventResponse, 0, len(snapshot.Recent))
	for _, event := range snapshot.Recent {
		events = append(events, toEventResponse(event))
	}

	return c.Status(fiber.StatusOK).JSON(notificationsResponse{
		Notifications: events,
		HasUnseen:     snapshot.HasUnseen,
	})
}

func (h *PanelHandler) MarkViewed(c *fiber.Ctx) error {
	h.store.MarkViewed()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"hasUnseen": false,
	})
}

func (h *PanelHandler) ClearNotifications(c *fiber.Ctx) error {
	h.store.ClearAll()
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *PanelHandler) ListToasts(c *fiber.Ctx) error {
	active := h.toasts.Active()

	toasts := make([]toastResponse, 0, len(active))
	for _, item := range active {
		toasts = append(toasts, toastResponse{
			ID:       item.ID,
			Severity: item.Severity.String(),
			ShownAt:  item.ShownAt,
			Event:    toEventResponse(item.Event),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"toasts": toasts,
	})
}

func (h *PanelHandler) DismissToast(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return toHTTPError(fmt.Errorf("%w: toast id is required", domain.ErrValidation))
	}

	if !h.toasts.Dismiss(id) {
		return toHTTPError(fmt.Errorf("%w: toast %s", domain.ErrNotFound, id))
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func toEventResponse(event domain.AccessEvent) eventResponse {
	resp := eventResponse{
		ID:              event.ID,
		SubjectName:     event.SubjectName,
		Message:         event.Message,
		PhotoRef:        event.PhotoRef,
		AccessGranted:   event.AccessGranted,
		OccurredAtLabel: event.OccurredAtLabel,
	}
	// Denied events never expose membership details, no matter what was
	// stored with them.
	if event.AccessGranted {
		resp.MembershipLabel = event.MembershipLabel
		resp.SessionsRemaining = event.SessionsRemaining
		resp.DaysRemaining = event.DaysRemaining
	}
	return resp
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
	default:
		return err
	}
}
