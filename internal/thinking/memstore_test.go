package thinking

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAndHistoryNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	s.Store("sess", "agent-0", Process{Action: "explore", Reasoning: "first", Timestamp: 1})
	s.Store("sess", "agent-0", Process{Action: "attack", Reasoning: "second", Timestamp: 2})
	s.Store("sess", "agent-0", Process{Action: "flee", Reasoning: "third", Timestamp: 3})

	got := s.History("sess", "agent-0", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Reasoning)
	assert.Equal(t, "second", got[1].Reasoning)

	assert.Equal(t, 3, s.Count("sess", "agent-0"))
	assert.Equal(t, 0, s.Count("sess", "agent-1"))
	assert.Nil(t, s.History("other", "agent-0", 5))
}

func TestHistoryDefaultLimit(t *testing.T) {
	s := NewMemoryStore()
	for i := 0; i < 20; i++ {
		s.Store("sess", "a", Process{Action: "explore", Timestamp: int64(i)})
	}
	assert.Len(t, s.History("sess", "a", 0), 10)
}

func TestPerAgentRingBound(t *testing.T) {
	s := NewMemoryStore()
	for i := 0; i < MaxEntriesPerAgent+10; i++ {
		s.Store("sess", "a", Process{Action: "explore", Reasoning: fmt.Sprintf("r%d", i), Timestamp: int64(i)})
	}
	assert.Equal(t, MaxEntriesPerAgent, s.Count("sess", "a"))

	got := s.History("sess", "a", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "r59", got[0].Reasoning, "oldest entries drop first")
}

func TestSessionLRUEviction(t *testing.T) {
	s := NewMemoryStore()
	now := time.Unix(1000, 0)
	s.SetClock(func() time.Time { return now })

	for i := 0; i < MaxSessions; i++ {
		now = now.Add(time.Second)
		s.Store(fmt.Sprintf("sess-%d", i), "a", Process{Action: "explore"})
	}
	require.Equal(t, MaxSessions, s.SessionCount())

	// Touch the oldest session so it is no longer the LRU.
	now = now.Add(time.Second)
	s.Store("sess-0", "a", Process{Action: "rest"})

	now = now.Add(time.Second)
	s.Store("sess-new", "a", Process{Action: "explore"})

	assert.Equal(t, MaxSessions, s.SessionCount())
	assert.Equal(t, 2, s.Count("sess-0", "a"), "recently touched session survives")
	assert.Equal(t, 0, s.Count("sess-1", "a"), "least recently used session evicted")
	assert.Equal(t, 1, s.Count("sess-new", "a"))
}

func TestClearSession(t *testing.T) {
	s := NewMemoryStore()
	s.Store("sess", "a", Process{Action: "explore"})
	s.ClearSession("sess")
	assert.Equal(t, 0, s.Count("sess", "a"))
	assert.Equal(t, 0, s.SessionCount())
}

func TestNullStoreDiscards(t *testing.T) {
	var s Store = NullStore{}
	s.Store("sess", "a", Process{Action: "explore"})
	assert.Nil(t, s.History("sess", "a", 10))
	assert.Equal(t, 0, s.Count("sess", "a"))
}
