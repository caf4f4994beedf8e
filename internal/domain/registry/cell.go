package registry

import (
	"github.com/google/uuid"
	"github.com/webitel/im-notification-gateway/internal/domain/event"
	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

// cell is the set of subscribers listening on one tag.
//
// Cells carry no lock of their own: every access happens under the Hub mutex,
// which keeps the tag->subscriber and subscriber->tag views consistent.
type cell struct {
	// [IDENTITY]
	tag model.Tag

	// [SESSIONS]
	// Every live connector registered under this tag, possibly from many users
	// (channel tags) or many devices of the same user (user tags).
	sessions map[uuid.UUID]Connector
}

func newCell(tag model.Tag) *cell {
	return &cell{
		tag:      tag,
		sessions: make(map[uuid.UUID]Connector),
	}
}

func (c *cell) attach(conn Connector) {
	c.sessions[conn.GetID()] = conn
}

// detach reports whether the cell became empty and should be dropped from the Hub.
func (c *cell) detach(connID uuid.UUID) bool {
	delete(c.sessions, connID)
	return len(c.sessions) == 0
}

func (c *cell) has(connID uuid.UUID) bool {
	_, ok := c.sessions[connID]
	return ok
}

func (c *cell) size() int { return len(c.sessions) }

// deliver pushes ev to every session and reports how many accepted and how many dropped it.
func (c *cell) deliver(ev event.Eventer) (sent, dropped int) {
	for _, conn := range c.sessions {
		if conn.Send(ev) {
			sent++
		} else {
			dropped++
		}
	}
	return sent, dropped
}
