// Package telemetry collects local search telemetry. Nothing leaves
// the process; snapshots surface through the status tool so operators
// can see what kinds of queries a folder serves.
package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is one histogram bucket for search latency.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// TermCount is a term and its frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is an immutable view of collected metrics.
type Snapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	MatchTypeCounts     map[string]int64        `json:"match_type_counts"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of queries with no results.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// circularBuffer is a fixed-capacity FIFO of recent values.
type circularBuffer[T any] struct {
	items    []T
	head     int
	size     int
	capacity int
}

func newCircularBuffer[T any](capacity int) *circularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &circularBuffer[T]{items: make([]T, capacity), capacity: capacity}
}

func (b *circularBuffer[T]) add(item T) {
	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// values returns items oldest-first.
func (b *circularBuffer[T]) values() []T {
	out := make([]T, 0, b.size)
	if b.size < b.capacity {
		return append(out, b.items[:b.size]...)
	}
	out = append(out, b.items[b.head:]...)
	return append(out, b.items[:b.head]...)
}

// ExtractTerms extracts countable terms from a query: lowercased
// whitespace-separated words of at least 3 characters.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(strings.TrimSpace(query))) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

const (
	topTermsCapacity    = 100
	zeroResultsCapacity = 100
	topTermsReported    = 10
)

// QueryMetrics collects search telemetry. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	total       int64
	zeroResults int64
	matchTypes  map[string]int64
	latencies   map[LatencyBucket]int64
	topTerms    *lru.Cache[string, int64]
	zeroQueries *circularBuffer[string]
	start       time.Time
}

// NewQueryMetrics creates an empty collector.
func NewQueryMetrics() *QueryMetrics {
	terms, _ := lru.New[string, int64](topTermsCapacity)
	return &QueryMetrics{
		matchTypes:  make(map[string]int64),
		latencies:   make(map[LatencyBucket]int64),
		topTerms:    terms,
		zeroQueries: newCircularBuffer[string](zeroResultsCapacity),
		start:       time.Now(),
	}
}

// Record registers one completed search. matchTypes holds the match
// type of each returned result.
func (m *QueryMetrics) Record(query string, matchTypes []string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.latencies[LatencyToBucket(latency)]++

	if len(matchTypes) == 0 {
		m.zeroResults++
		m.zeroQueries.add(query)
	}
	for _, mt := range matchTypes {
		m.matchTypes[mt]++
	}

	for _, term := range ExtractTerms(query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}
}

// Snapshot returns a copy of the current metrics.
func (m *QueryMetrics) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &Snapshot{
		TotalQueries:        m.total,
		ZeroResultCount:     m.zeroResults,
		MatchTypeCounts:     make(map[string]int64, len(m.matchTypes)),
		LatencyDistribution: make(map[LatencyBucket]int64, len(m.latencies)),
		ZeroResultQueries:   m.zeroQueries.values(),
		Since:               m.start,
	}
	for k, v := range m.matchTypes {
		snap.MatchTypeCounts[k] = v
	}
	for k, v := range m.latencies {
		snap.LatencyDistribution[k] = v
	}

	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Get(key); ok {
			snap.TopTerms = append(snap.TopTerms, TermCount{Term: key, Count: count})
		}
	}
	sortTermCounts(snap.TopTerms)
	if len(snap.TopTerms) > topTermsReported {
		snap.TopTerms = snap.TopTerms[:topTermsReported]
	}
	return snap
}

// sortTermCounts orders by count descending, ties lexicographic.
func sortTermCounts(terms []TermCount) {
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
}
