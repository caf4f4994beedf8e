package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/webitel/im-notification-gateway/config"
	"github.com/webitel/im-notification-gateway/infra/client/notification"
	"github.com/webitel/im-notification-gateway/internal/domain/event"
	"github.com/webitel/im-notification-gateway/internal/domain/registry"
)

var discard = slog.New(slog.DiscardHandler)

// brokenDirectory fails every membership lookup.
type brokenDirectory struct {
	Directory
}

func (brokenDirectory) GetGroups(context.Context, int64) ([]string, error) {
	return nil, errors.New("directory is down")
}

type recordingExporter struct {
	mu     sync.Mutex
	events []event.Eventer
	err    error
}

func (e *recordingExporter) Publish(_ context.Context, ev event.Eventer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return e.err
}

type fixture struct {
	hub       *registry.Hub
	auth      *TokenService
	directory *notification.Memory
	exporter  *recordingExporter
	delivery  *DeliveryService
	notifier  *NotificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hub := registry.NewHub(registry.WithLogger(discard))
	t.Cleanup(hub.Shutdown)

	cfg := &config.Config{Notification: config.NotificationConfig{PageSize: 2}}
	auth := NewTokenService(testBearerSecret, testSenderSecret)
	directory := notification.NewMemory()
	membership := NewMembershipMiddleware(NewMembershipResolver(directory, 16, time.Minute), discard)
	exporter := &recordingExporter{}

	return &fixture{
		hub:       hub,
		auth:      auth,
		directory: directory,
		exporter:  exporter,
		delivery:  NewDeliveryService(hub, auth, membership, discard),
		notifier:  NewNotificationService(hub, auth, directory, membership, exporter, cfg, discard),
	}
}

func (f *fixture) bearer(t *testing.T, userID int64) string {
	t.Helper()
	token, err := f.auth.IssueBearer(userID, "user@example.com")
	require.NoError(t, err)
	return token
}

func (f *fixture) senderToken(t *testing.T, channel string) string {
	t.Helper()
	token, err := f.auth.IssueSenderToken(channel, "admin@example.com")
	require.NoError(t, err)
	return token
}

func recv(t *testing.T, conn registry.Connector) event.Eventer {
	t.Helper()
	select {
	case ev := <-conn.Recv():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func assertEmpty(t *testing.T, conn registry.Connector) {
	t.Helper()
	select {
	case ev := <-conn.Recv():
		t.Fatalf("unexpected event %s", ev.GetID())
	default:
	}
}
