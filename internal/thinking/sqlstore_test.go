package thinking

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "thinking.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := openTestSQLite(t)
	s.Store("sess", "agent-0", Process{
		Action:      "attack",
		Reasoning:   "Vera is weak",
		Prompt:      "system prompt",
		RawResponse: "ACTION: attack Vera",
		Timestamp:   42,
	})

	got := s.History("sess", "agent-0", 5)
	require.Len(t, got, 1)
	assert.Equal(t, "attack", got[0].Action)
	assert.Equal(t, "Vera is weak", got[0].Reasoning)
	assert.Equal(t, "system prompt", got[0].Prompt)
	assert.Equal(t, "ACTION: attack Vera", got[0].RawResponse)
	assert.Equal(t, int64(42), got[0].Timestamp)

	assert.Equal(t, 1, s.Count("sess", "agent-0"))
	assert.Equal(t, 0, s.Count("sess", "agent-1"))
	assert.Nil(t, s.History("other", "agent-0", 5))
}

func TestSQLiteHistoryNewestFirstAndDefaultLimit(t *testing.T) {
	s := openTestSQLite(t)
	for i := 0; i < 20; i++ {
		s.Store("sess", "a", Process{Action: "explore", Reasoning: fmt.Sprintf("r%d", i), Timestamp: int64(i)})
	}

	got := s.History("sess", "a", 0)
	require.Len(t, got, 10, "zero limit falls back to 10")
	assert.Equal(t, "r19", got[0].Reasoning)
	assert.Equal(t, "r10", got[9].Reasoning)
}

func TestSQLitePerAgentRingBound(t *testing.T) {
	s := openTestSQLite(t)
	for i := 0; i < MaxEntriesPerAgent+10; i++ {
		s.Store("sess", "a", Process{Action: "explore", Reasoning: fmt.Sprintf("r%d", i), Timestamp: int64(i)})
	}
	assert.Equal(t, MaxEntriesPerAgent, s.Count("sess", "a"))

	got := s.History("sess", "a", MaxEntriesPerAgent)
	require.Len(t, got, MaxEntriesPerAgent)
	assert.Equal(t, "r59", got[0].Reasoning, "newest survives")
	assert.Equal(t, "r10", got[MaxEntriesPerAgent-1].Reasoning, "oldest entries drop first")
}

func TestSQLiteSessionEviction(t *testing.T) {
	s := openTestSQLite(t)
	ts := int64(1000)

	for i := 0; i < MaxSessions; i++ {
		ts++
		s.Store(fmt.Sprintf("sess-%d", i), "a", Process{Action: "explore", Timestamp: ts})
	}

	// Touch the oldest session so it is no longer the LRU.
	ts++
	s.Store("sess-0", "a", Process{Action: "rest", Timestamp: ts})

	ts++
	s.Store("sess-new", "a", Process{Action: "explore", Timestamp: ts})

	assert.Equal(t, 2, s.Count("sess-0", "a"), "recently touched session survives")
	assert.Equal(t, 0, s.Count("sess-1", "a"), "least recently used session evicted")
	assert.Equal(t, 1, s.Count("sess-new", "a"))
}

func TestSQLiteClearSession(t *testing.T) {
	s := openTestSQLite(t)
	s.Store("sess", "a", Process{Action: "explore", Timestamp: 1})
	s.Store("keep", "a", Process{Action: "explore", Timestamp: 2})

	s.ClearSession("sess")
	assert.Equal(t, 0, s.Count("sess", "a"))
	assert.Equal(t, 1, s.Count("keep", "a"))
}
