package domain

import (
	"context"
	"fmt"
	"strings"
)

// ChangeType is the kind of row change carried by the realtime feed.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ParseChangeType accepts INSERT, UPDATE or DELETE in any case.
func ParseChangeType(s string) (ChangeType, error) {
	t := ChangeType(strings.ToUpper(s))
	switch t {
	case ChangeInsert, ChangeUpdate, ChangeDelete:
		return t, nil
	}
	return "", fmt.Errorf("unknown change type %q", s)
}

// ChangeEvent is one item from the realtime feed. Hotspot is set for
// INSERT and UPDATE and nil for DELETE.
type ChangeEvent struct {
	Type    ChangeType `json:"type"`
	ID      string     `json:"id"`
	Hotspot *Hotspot   `json:"hotspot,omitempty"`
}

// ChangeHandler receives feed events.
type ChangeHandler func(ChangeEvent)

// ChangeFeed delivers committed row changes to a handler until the context
// is cancelled. Delivery order relative to direct mutation responses is not
// guaranteed.
type ChangeFeed interface {
	Subscribe(ctx context.Context, handler ChangeHandler) error
}

// ChangePublisher announces a committed change to other instances.
type ChangePublisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

// NotificationLevel grades a user-facing notification.
type NotificationLevel string

const (
	NotifyInfo  NotificationLevel = "info"
	NotifyError NotificationLevel = "error"
)

// Notification is a short user-facing message.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
}

// Notifier delivers notifications and change broadcasts to connected users.
type Notifier interface {
	Notify(n Notification)
	BroadcastChange(event ChangeEvent)
}
