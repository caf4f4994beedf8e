package ssemarshaller

import (
	"bytes"
	"io"

	"github.com/webitel/im-notification-gateway/internal/domain/event"
	"github.com/webitel/im-notification-gateway/internal/handler/marshaller"
)

var keepAliveFrame = []byte(": keepalive\n\n")

// MarshallFrame renders ev as one Server-Sent Events frame.
func MarshallFrame(ev event.Eventer) ([]byte, error) {
	data, err := marshaller.MarshallDeliveryEvent(ev)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(data) + 32)
	if name := marshaller.EventName(ev); name != "" {
		buf.WriteString("event: ")
		buf.WriteString(name)
		buf.WriteByte('\n')
	}
	buf.WriteString("id: ")
	buf.WriteString(ev.GetID())
	buf.WriteByte('\n')
	// Compact JSON never contains a raw newline, so a single data line is enough.
	buf.WriteString("data: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

// WriteKeepAlive writes a comment frame that EventSource clients ignore.
func WriteKeepAlive(w io.Writer) error {
	_, err := w.Write(keepAliveFrame)
	return err
}
