package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard-backend/pkg/models"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.C():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "comments:task:t1", CommentsTopic(models.EntityTask, "t1"))
	assert.Equal(t, "mentions:ws-1", MentionsTopic("ws-1"))
	assert.Equal(t, "tasks:ws-1", TasksTopic("ws-1"))
}

func TestPublishReachesSubscribers(t *testing.T) {
	hub := NewHub()
	topic := TasksTopic("ws-1")

	a := hub.Subscribe(topic)
	b := hub.Subscribe(topic)
	defer a.Close()
	defer b.Close()

	hub.Publish(topic, EventInsert, map[string]string{"id": "t1"})

	for _, sub := range []*Subscription{a, b} {
		ev := receive(t, sub)
		assert.Equal(t, topic, ev.Topic)
		assert.Equal(t, EventInsert, ev.Type)

		var payload map[string]string
		require.NoError(t, json.Unmarshal(ev.Payload, &payload))
		assert.Equal(t, "t1", payload["id"])
	}
}

func TestPublishIsScopedToTopic(t *testing.T) {
	hub := NewHub()
	tasks := hub.Subscribe(TasksTopic("ws-1"))
	mentions := hub.Subscribe(MentionsTopic("ws-1"))
	defer tasks.Close()
	defer mentions.Close()

	hub.Publish(TasksTopic("ws-1"), EventUpdate, map[string]string{"id": "t1"})

	receive(t, tasks)
	select {
	case ev := <-mentions.C():
		t.Fatalf("mention stream received unrelated event %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	topic := CommentsTopic(models.EntityTask, "t1")
	sub := hub.Subscribe(topic)
	defer sub.Close()

	// Overfill the buffer without draining; Publish must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultBuffer*3; i++ {
			hub.Publish(topic, EventInsert, map[string]int{"n": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// The buffer holds the earliest events; the rest were dropped.
	assert.Equal(t, defaultBuffer, len(sub.ch))
}

func TestCloseDetachesSubscription(t *testing.T) {
	hub := NewHub()
	topic := TasksTopic("ws-1")

	sub := hub.Subscribe(topic)
	assert.Equal(t, 1, hub.SubscriberCount(topic))

	sub.Close()
	assert.Equal(t, 0, hub.SubscriberCount(topic))

	// Closed stream is closed exactly once; double Close is safe.
	sub.Close()
	_, open := <-sub.C()
	assert.False(t, open)

	// Publishing after close does not panic.
	hub.Publish(topic, EventDelete, map[string]string{"id": "t1"})
}

func TestTypingEventsAreEphemeralBroadcasts(t *testing.T) {
	hub := NewHub()
	topic := CommentsTopic(models.EntityTask, "t1")
	sub := hub.Subscribe(topic)
	defer sub.Close()

	hub.Publish(topic, EventTyping, map[string]interface{}{"user_id": "u1"})

	ev := receive(t, sub)
	assert.Equal(t, EventTyping, ev.Type)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, "u1", payload["user_id"])
}
