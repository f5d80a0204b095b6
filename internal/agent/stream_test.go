package agent

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEMessageQueue_ReplayAfterID(t *testing.T) {
	q := NewSSEMessageQueue(10)
	for i := int64(1); i <= 4; i++ {
		q.Enqueue("u", "s", i, Event{Type: EventPhase, Phase: PhaseSubmitted})
	}

	missed := q.GetMissedMessages("u", "s", 2)
	require.Len(t, missed, 2)
	assert.Equal(t, int64(3), missed[0].EventID)
	assert.Equal(t, int64(4), missed[1].EventID)

	assert.Empty(t, q.GetMissedMessages("u", "other", 0))
}

func TestSSEMessageQueue_BoundedPerSession(t *testing.T) {
	q := NewSSEMessageQueue(3)
	for i := int64(1); i <= 5; i++ {
		q.Enqueue("u", "busy", i, Event{Type: EventTurn})
	}
	q.Enqueue("u", "quiet", 6, Event{Type: EventCleared})

	busy := q.GetMissedMessages("u", "busy", 0)
	require.Len(t, busy, 3)
	assert.Equal(t, int64(3), busy[0].EventID)
	assert.Len(t, q.GetMissedMessages("u", "quiet", 0), 1)

	q.Prune("u", "busy")
	assert.Empty(t, q.GetMissedMessages("u", "busy", 0))
}

type recordingSubscriber struct {
	k   string
	id  int64
	got []int64
}

func (r *recordingSubscriber) key() string   { return r.k }
func (r *recordingSubscriber) connID() int64 { return r.id }
func (r *recordingSubscriber) send(eventID int64, _ Event) {
	r.got = append(r.got, eventID)
}

func TestStreamHub_PublishFansOutPerSession(t *testing.T) {
	hub := newStreamHub()
	a1 := &recordingSubscriber{k: sseSessionKey("u", "a"), id: hub.nextConnID()}
	a2 := &recordingSubscriber{k: sseSessionKey("u", "a"), id: hub.nextConnID()}
	b := &recordingSubscriber{k: sseSessionKey("u", "b"), id: hub.nextConnID()}
	hub.register(a1)
	hub.register(a2)
	hub.register(b)

	hub.publish("u", "a", Event{Type: EventCleared})
	hub.unregister(a2)
	hub.publish("u", "a", Event{Type: EventCleared})

	assert.Equal(t, []int64{1, 2}, a1.got)
	assert.Equal(t, []int64{1}, a2.got)
	assert.Empty(t, b.got)

	hub.forget("u", "a")
	assert.Empty(t, hub.queue.GetMissedMessages("u", "a", 0))
}

func TestWriteSSEWithID(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSSEWithID(&buf, 7, "turn", `{"type":"turn"}`))
	assert.Equal(t, "id: 7\nevent: turn\ndata: {\"type\":\"turn\"}\n\n", buf.String())
}
