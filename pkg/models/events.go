package models

import "time"

// EventType identifies what a stream event carries.
type EventType string

const (
	EventTweet        EventType = "tweet"
	EventAlert        EventType = "alert"
	EventVolumeSpike  EventType = "volume_spike"
	EventReconnecting EventType = "reconnecting"
	EventError        EventType = "error"
)

// Urgency is the per-post severity class assigned by the live stream.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// StreamEvent is one enriched item emitted by the live event stream.
type StreamEvent struct {
	Type            EventType `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	Entity          string    `json:"entity,omitempty"`
	Post            *Post     `json:"post,omitempty"`
	MatchedKeywords []string  `json:"matched_keywords,omitempty"`
	Urgency         Urgency   `json:"urgency,omitempty"`
	UrgencyScore    float64   `json:"urgency_score,omitempty"`

	// volume_spike payload
	WindowCount int `json:"window_count,omitempty"`

	// reconnecting / error payload
	Attempt int    `json:"attempt,omitempty"`
	Message string `json:"message,omitempty"`
}
