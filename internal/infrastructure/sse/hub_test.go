package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-houngbo/Colit/internal/domain/notification"
)

func TestHub_RegisterUnregister(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := NewClient("c1", "u1")
	h.Register(c)
	assert.Equal(t, 1, h.GetClientCount())
	assert.Same(t, c, h.GetClient("c1"))

	h.Unregister("c1")
	assert.Equal(t, 0, h.GetClientCount())
	_, open := <-c.MessageChan
	assert.False(t, open)

	h.Unregister("c1")
}

func TestHub_SendTargetsRecipient(t *testing.T) {
	h := NewHub(zerolog.Nop())
	mine := NewClient("c1", "u1")
	other := NewClient("c2", "u2")
	h.Register(mine)
	h.Register(other)

	n := notification.NewNotification(uuid.New(), "u1", notification.Intent{
		Type:  notification.EventNewMessage,
		Title: "Nouveau message",
		Body:  "hello",
	})
	require.NoError(t, h.Send(context.Background(), n))

	require.Len(t, mine.MessageChan, 1)
	assert.Len(t, other.MessageChan, 0)

	msg := <-mine.MessageChan
	assert.Equal(t, EventNotification, msg.Event)
	var got notification.Notification
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, n.NotificationID, got.NotificationID)
}

func TestHub_SendWithoutStreams(t *testing.T) {
	h := NewHub(zerolog.Nop())
	n := notification.NewNotification(uuid.New(), "offline", notification.Intent{Type: notification.EventNewMessage})
	assert.NoError(t, h.Send(context.Background(), n))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.Send(ctx, n), context.Canceled)
}

func TestHub_SendToClientFull(t *testing.T) {
	h := NewHub(zerolog.Nop())
	h.Register(NewClient("c1", "u1"))
	msg, err := NewMessage("ping", map[string]string{"a": "b"})
	require.NoError(t, err)

	for i := 0; i < clientBuffer; i++ {
		require.NoError(t, h.SendToClient("c1", msg))
	}
	assert.ErrorIs(t, h.SendToClient("c1", msg), ErrChannelFull)
	assert.ErrorIs(t, h.SendToClient("missing", msg), ErrClientNotFound)
}

func TestMessage_WriteTo(t *testing.T) {
	msg, err := NewMessage("change", map[string]int{"n": 1})
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "id: "+msg.ID+"\nevent: change\ndata: {\"n\":1}\n\n", buf.String())
}

func TestHub_Stop(t *testing.T) {
	h := NewHub(zerolog.Nop())
	h.Register(NewClient("c1", "u1"))
	h.Register(NewClient("c2", "u1"))
	h.Stop()
	assert.Equal(t, 0, h.GetClientCount())
}
