// Package memory provides the bounded per-agent memory stream with
// importance/recency/relevance retrieval.
package memory

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Kind classifies how a memory entered the stream.
type Kind string

const (
	Observation Kind = "observation"
	Reflection  Kind = "reflection"
	Plan        Kind = "plan"
	InnerVoice  Kind = "inner_voice"
)

// Entry is a single remembered experience. Timestamp is wall-clock
// milliseconds.
type Entry struct {
	Text       string `json:"text"`
	Kind       Kind   `json:"kind"`
	Importance int    `json:"importance"` // 1..10
	Timestamp  int64  `json:"timestamp"`
}

const (
	// MaxEntries is the stream's hard capacity.
	MaxEntries = 100
	// keepFraction of MaxEntries survives a truncation pass.
	keepFraction = 0.8
	// recencyDecay is applied per second of age when scoring retrieval.
	recencyDecay = 0.995

	retrievalRecencyWeight    = 0.3
	retrievalImportanceWeight = 0.4
	retrievalRelevanceWeight  = 0.3
)

// Stream is a bounded, insertion-ordered memory store. Not safe for
// concurrent use; the world owns each agent's stream.
type Stream struct {
	entries []Entry
	max     int
	now     func() time.Time
}

// NewStream creates an empty stream with the default capacity.
func NewStream() *Stream {
	return &Stream{max: MaxEntries, now: time.Now}
}

// SetClock overrides the stream's clock. Test hook.
func (s *Stream) SetClock(now func() time.Time) { s.now = now }

// Len returns the number of stored entries.
func (s *Stream) Len() int { return len(s.entries) }

// Add appends a memory, clamping importance to [1,10]. When the stream
// overflows, the most important 80% survive.
func (s *Stream) Add(text string, importance int, kind Kind) {
	if importance < 1 {
		importance = 1
	} else if importance > 10 {
		importance = 10
	}
	s.entries = append(s.entries, Entry{
		Text:       text,
		Kind:       kind,
		Importance: importance,
		Timestamp:  s.now().UnixMilli(),
	})
	if len(s.entries) > s.max {
		sort.SliceStable(s.entries, func(i, j int) bool {
			return s.entries[i].Importance > s.entries[j].Importance
		})
		keep := int(math.Floor(float64(s.max) * keepFraction))
		s.entries = s.entries[:keep]
	}
}

// Recent returns the last n entries in insertion order.
func (s *Stream) Recent(n int) []Entry {
	if n <= 0 || len(s.entries) == 0 {
		return nil
	}
	if n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]Entry, n)
	copy(out, s.entries[len(s.entries)-n:])
	return out
}

// Retrieve returns the top-k entries scored by a weighted blend of recency,
// importance and word-overlap relevance to the query. The relevance term is
// deliberately a pure (entry, query) → [0,1] function so an embedding-based
// scorer can replace it without touching callers.
func (s *Stream) Retrieve(query string, k int) []Entry {
	if k <= 0 || len(s.entries) == 0 {
		return nil
	}
	queryWords := strings.Fields(strings.ToLower(query))
	nowMs := s.now().UnixMilli()

	type scored struct {
		entry Entry
		score float64
	}
	ranked := make([]scored, 0, len(s.entries))
	for _, e := range s.entries {
		ageSec := float64(nowMs-e.Timestamp) / 1000.0
		if ageSec < 0 {
			ageSec = 0
		}
		recency := math.Pow(recencyDecay, ageSec)
		importance := float64(e.Importance) / 10.0
		relevance := wordOverlap(e.Text, queryWords)
		ranked = append(ranked, scored{
			entry: e,
			score: retrievalRecencyWeight*recency +
				retrievalImportanceWeight*importance +
				retrievalRelevanceWeight*relevance,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]Entry, k)
	for i := 0; i < k; i++ {
		out[i] = ranked[i].entry
	}
	return out
}

// LatestOfKind returns the most recent entry of the given kind no older than
// maxAge, or false when none qualifies. The tick loop uses this for the
// inner-voice delivery window.
func (s *Stream) LatestOfKind(kind Kind, maxAge time.Duration) (Entry, bool) {
	cutoff := s.now().Add(-maxAge).UnixMilli()
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.Kind != kind {
			continue
		}
		if e.Timestamp >= cutoff {
			return e, true
		}
		return Entry{}, false
	}
	return Entry{}, false
}

func wordOverlap(text string, queryWords []string) float64 {
	if len(queryWords) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, w := range queryWords {
		if strings.Contains(lower, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(queryWords))
}
