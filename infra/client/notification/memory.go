package notification

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

// Memory is an in-process directory used when no notification service is configured,
// and by tests. Nothing survives a restart.
type Memory struct {
	mu       sync.RWMutex
	groups   map[string]memoryGroup
	members  map[int64][]string
	messages []*model.NotificationMessage
	nextID   int64
	now      func() time.Time
}

type memoryGroup struct {
	adminEmail string
	token      string
}

func NewMemory() *Memory {
	return &Memory{
		groups:  make(map[string]memoryGroup),
		members: make(map[int64][]string),
		now:     time.Now,
	}
}

func (m *Memory) GetGroups(_ context.Context, userID int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.members[userID]), nil
}

func (m *Memory) AddSubscriber(_ context.Context, userID int64, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.groups[group]; !ok {
		return fmt.Errorf("group %q does not exist", group)
	}
	if !slices.Contains(m.members[userID], group) {
		m.members[userID] = append(m.members[userID], group)
	}
	return nil
}

func (m *Memory) RemoveSubscriber(_ context.Context, userID int64, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.members[userID] = slices.DeleteFunc(m.members[userID], func(g string) bool { return g == group })
	if len(m.members[userID]) == 0 {
		delete(m.members, userID)
	}
	return nil
}

func (m *Memory) AddGroup(_ context.Context, group model.Group, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.groups[group.Name]; ok {
		return fmt.Errorf("group %q already exists", group.Name)
	}
	m.groups[group.Name] = memoryGroup{adminEmail: group.AdminEmail, token: token}
	return nil
}

func (m *Memory) RemoveGroup(_ context.Context, group model.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[group.Name]
	if !ok || g.adminEmail != group.AdminEmail {
		return fmt.Errorf("group %q is not administered by %s", group.Name, group.AdminEmail)
	}
	delete(m.groups, group.Name)
	for uid, groups := range m.members {
		m.members[uid] = slices.DeleteFunc(groups, func(name string) bool { return name == group.Name })
		if len(m.members[uid]) == 0 {
			delete(m.members, uid)
		}
	}
	return nil
}

func (m *Memory) AddMessage(_ context.Context, channel, subject, message string) (*model.RecordedMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	msg := &model.NotificationMessage{
		ID:       m.nextID,
		Channel:  channel,
		Subject:  subject,
		Message:  message,
		Datetime: m.now().UTC(),
	}
	m.messages = append(m.messages, msg)
	return &model.RecordedMessage{ID: msg.ID, Datetime: msg.Datetime}, nil
}

// GetMessages pages through the messages of channels, newest first.
func (m *Memory) GetMessages(_ context.Context, channels []string, offset, limit int64) (*model.NotificationLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*model.NotificationMessage
	for i := len(m.messages) - 1; i >= 0; i-- {
		if slices.Contains(channels, m.messages[i].Channel) {
			matched = append(matched, m.messages[i])
		}
	}

	out := &model.NotificationLog{
		Notifications: []*model.NotificationMessage{},
		Count:         int64(len(matched)),
	}
	if offset >= int64(len(matched)) {
		return out, nil
	}
	end := min(offset+limit, int64(len(matched)))
	for _, msg := range matched[offset:end] {
		cp := *msg
		out.Notifications = append(out.Notifications, &cp)
	}
	return out, nil
}
