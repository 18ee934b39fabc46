package device

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gymaccess/access-panel/internal/domain"
)

type fakeLimiter struct {
	allow    bool
	err      error
	gotKeys  []string
	waitFunc func(ctx context.Context, deviceID string) error
}

func (f *fakeLimiter) Allow(_ context.Context, deviceID string) (bool, error) {
	f.gotKeys = append(f.gotKeys, deviceID)
	return f.allow, f.err
}

func (f *fakeLimiter) Wait(ctx context.Context, deviceID string) error {
	if f.waitFunc != nil {
		return f.waitFunc(ctx, deviceID)
	}
	return nil
}

func TestCommanderOpenDoorSuccess(t *testing.T) {
	t.Parallel()

	var gotBody commandRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}

		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	limiter := &fakeLimiter{allow: true}
	c, err := NewCommander(server.URL, limiter, nil)
	if err != nil {
		t.Fatalf("NewCommander() error = %v", err)
	}

	ack, err := c.OpenDoor(context.Background(), "door-main")
	if err != nil {
		t.Fatalf("OpenDoor() unexpected error: %v", err)
	}

	if ack.StatusCode != http.StatusAccepted {
		t.Fatalf("StatusCode = %d, want %d", ack.StatusCode, http.StatusAccepted)
	}
	if gotBody.Comando != CommandOpenDoor {
		t.Fatalf("request.comando = %q, want %q", gotBody.Comando, CommandOpenDoor)
	}
	if gotBody.Dispositivo != "door-main" {
		t.Fatalf("request.dispositivo = %q, want %q", gotBody.Dispositivo, "door-main")
	}
	if len(limiter.gotKeys) != 1 || limiter.gotKeys[0] != "door-main" {
		t.Fatalf("limiter keys = %v, want [door-main]", limiter.gotKeys)
	}
}

func TestCommanderSendRejectsUnknownCommand(t *testing.T) {
	t.Parallel()

	c, err := NewCommander("http://localhost:1", &fakeLimiter{allow: true}, nil)
	if err != nil {
		t.Fatalf("NewCommander() error = %v", err)
	}

	_, err = c.Send(context.Background(), "reiniciar", "door-main")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Send() error = %v, want %v", err, domain.ErrValidation)
	}
}

func TestCommanderSendRateLimited(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("controller should not be called when rate limited")
	}))
	defer server.Close()

	c, err := NewCommander(server.URL, &fakeLimiter{allow: false}, nil)
	if err != nil {
		t.Fatalf("NewCommander() error = %v", err)
	}

	_, err = c.Send(context.Background(), CommandOpenDoor, "door-main")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("Send() error = %v, want %v", err, domain.ErrRateLimited)
	}
}

func TestCommanderSendStatusClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		statusCode    int
		wantTransient bool
	}{
		{name: "too many requests is transient", statusCode: http.StatusTooManyRequests, wantTransient: true},
		{name: "bad request is permanent", statusCode: http.StatusBadRequest, wantTransient: false},
		{name: "internal server error is transient", statusCode: http.StatusInternalServerError, wantTransient: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte("controller failed"))
			}))
			defer server.Close()

			c, err := NewCommander(server.URL, &fakeLimiter{allow: true}, nil)
			if err != nil {
				t.Fatalf("NewCommander() error = %v", err)
			}

			_, err = c.Send(context.Background(), CommandSync, "door-main")
			if err == nil {
				t.Fatal("expected error")
			}

			if got := IsTransient(err); got != tc.wantTransient {
				t.Fatalf("IsTransient() = %v, want %v", got, tc.wantTransient)
			}

			var commandErr *CommandError
			if !errors.As(err, &commandErr) {
				t.Fatalf("expected CommandError, got %T", err)
			}
			if commandErr.StatusCode != tc.statusCode {
				t.Fatalf("CommandError.StatusCode = %d, want %d", commandErr.StatusCode, tc.statusCode)
			}
		})
	}
}

func TestCommanderSendTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := resty.New()
	client.SetTimeout(30 * time.Millisecond)

	c, err := NewCommanderWithClient(server.URL, &fakeLimiter{allow: true}, nil, client)
	if err != nil {
		t.Fatalf("NewCommanderWithClient() error = %v", err)
	}

	_, err = c.Send(context.Background(), CommandOpenDoor, "door-main")
	if err == nil {
		t.Fatal("expected timeout error")
	}

	if !IsTransient(err) {
		t.Fatalf("IsTransient() = false, want true (err=%v)", err)
	}
}
