// Package analytics collects search events, ships them through Kafka and
// aggregates them into query statistics.
package analytics

import "time"

type EventType string

const (
	EventSearch    EventType = "search"
	EventCacheHit  EventType = "cache_hit"
	EventZeroScore EventType = "zero_score"
	EventError     EventType = "error"
)

// SearchEvent describes one ranking request. TopScore is zero when no
// document contains any query term, which is reported as EventZeroScore.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	TotalDocs int       `json:"total_docs"`
	Returned  int       `json:"returned"`
	TopDocID  string    `json:"top_doc_id,omitempty"`
	TopScore  float64   `json:"top_score"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}
