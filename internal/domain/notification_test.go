package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinNotification(t *testing.T) {
	id := uuid.MustParse("6f1c0c9e-3c1b-4c4e-9f43-1f2b3c4d5e6f")

	n := JoinNotification(id, "192.168.1.20:51234")

	assert.Equal(t, "Server_msg", n.Type)
	assert.Equal(t, "Client 6f1c0c9e-3c1b-4c4e-9f43-1f2b3c4d5e6f connected from 192.168.1.20:51234", n.Message)
	assert.Equal(t, id.String(), n.ClientID)
	assert.Equal(t, "192.168.1.20:51234", n.Origin)
}

func TestLeaveNotification(t *testing.T) {
	id := uuid.New()

	n := LeaveNotification(id, "10.0.0.7:40000")

	assert.Equal(t, NotificationType, n.Type)
	assert.Equal(t, "Client "+id.String()+" disconnected", n.Message)
	assert.Equal(t, "10.0.0.7:40000", n.Origin)
}

func TestNotification_WireFormat(t *testing.T) {
	data, err := json.Marshal(LeaveNotification(uuid.Nil, ""))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "Server_msg", fields["type"])
	assert.Contains(t, fields["message"], "disconnected")
	assert.NotContains(t, fields, "origin", "empty origin should be omitted")
}
