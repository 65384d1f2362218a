package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// NotificationType tags messages that originate from the relay itself rather than from a peer.
// Existing clients match on this exact value.
const NotificationType = "Server_msg"

// Notification is the structured payload broadcast when a client joins or leaves.
type Notification struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	ClientID string `json:"client_id,omitempty"`
	Origin   string `json:"origin,omitempty"`
}

// JoinNotification announces a client that has just been registered.
func JoinNotification(id uuid.UUID, origin string) Notification {
	return Notification{
		Type:     NotificationType,
		Message:  fmt.Sprintf("Client %s connected from %s", id, origin),
		ClientID: id.String(),
		Origin:   origin,
	}
}

// LeaveNotification announces a client that has been removed from the registry.
func LeaveNotification(id uuid.UUID, origin string) Notification {
	return Notification{
		Type:     NotificationType,
		Message:  fmt.Sprintf("Client %s disconnected", id),
		ClientID: id.String(),
		Origin:   origin,
	}
}
