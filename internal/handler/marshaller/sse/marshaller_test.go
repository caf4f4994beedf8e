package ssemarshaller

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/im-notification-gateway/internal/domain/event"
	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

func TestMarshallFrame_Notification(t *testing.T) {
	ev := event.NewNotificationV1Event(model.UserTag(1), &model.NotificationMessage{
		ID:       3,
		Channel:  "User:1",
		Subject:  "Hello there",
		Message:  "line one\nline two",
		Datetime: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	})

	frame, err := MarshallFrame(ev)
	require.NoError(t, err)

	s := string(frame)
	assert.True(t, strings.HasPrefix(s, "id: 3\ndata: {"))
	assert.True(t, strings.HasSuffix(s, "}\n\n"))
	assert.NotContains(t, s, "event:")
	// The embedded newline is escaped inside the single data line.
	assert.Equal(t, 3, strings.Count(s, "\n"))
}

func TestMarshallFrame_SystemEventIsNamed(t *testing.T) {
	frame, err := MarshallFrame(event.NewConnectedEvent(uuid.New(), nil))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(frame), "event: connected\nid: "))
}

func TestWriteKeepAlive(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteKeepAlive(&buf))
	assert.Equal(t, ": keepalive\n\n", buf.String())
}
