package broker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestEnvelope_RoundTrips(t *testing.T) {
	env := Envelope{StoryID: uuid.New(), Attempt: 2, EnqueuedAt: time.Now().Truncate(time.Second)}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Envelope
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.StoryID != env.StoryID {
		t.Errorf("story id mismatch: got %s, want %s", got.StoryID, env.StoryID)
	}
	if got.Attempt != env.Attempt {
		t.Errorf("attempt mismatch: got %d, want %d", got.Attempt, env.Attempt)
	}
	if !got.EnqueuedAt.Equal(env.EnqueuedAt) {
		t.Errorf("enqueued_at mismatch: got %v, want %v", got.EnqueuedAt, env.EnqueuedAt)
	}
}

func TestClient_KeyNamespacing(t *testing.T) {
	c := New(nil, "stories.jobs.v1", time.Minute, time.Second)

	if got, want := c.mainKey(), "queue:stories.jobs.v1"; got != want {
		t.Errorf("mainKey() = %q, want %q", got, want)
	}
	if got, want := c.inflightKey(), "queue:stories.jobs.v1:inflight"; got != want {
		t.Errorf("inflightKey() = %q, want %q", got, want)
	}
	if got, want := c.deadlineKey(), "queue:stories.jobs.v1:deadlines"; got != want {
		t.Errorf("deadlineKey() = %q, want %q", got, want)
	}
}
