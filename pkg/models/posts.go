package models

import "time"

// VerifiedTier is the account verification level reported by the upstream API.
type VerifiedTier string

const (
	TierNone       VerifiedTier = "none"
	TierStandard   VerifiedTier = "standard"
	TierBusiness   VerifiedTier = "business"
	TierGovernment VerifiedTier = "government"
)

// Author holds the account metadata attached to a post. Authors are owned by
// the post that references them and are re-fetched on every query.
type Author struct {
	Username       string       `json:"username"`
	Verified       bool         `json:"verified"`
	VerifiedTier   VerifiedTier `json:"verified_tier"`
	Followers      int          `json:"followers"`
	Following      int          `json:"following"`
	AccountAgeDays int          `json:"account_age_days"`
}

// Post is one fetched or streamed item. Identity is ID; posts are immutable
// once fetched.
type Post struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Author    Author    `json:"author"`
	URL       string    `json:"url"`
	IsReply   bool      `json:"is_reply"`

	// Raw engagement counts
	Likes    int `json:"likes"`
	Retweets int `json:"retweets"`
	Replies  int `json:"replies"`
	Quotes   int `json:"quotes"`

	// Derived scores, filled in by the credibility scorer
	EngagementScore    float64 `json:"engagement_score"`
	CredibilityScore   float64 `json:"credibility_score"`
	VerificationWeight float64 `json:"verification_weight"`
}

// TotalEngagement returns the sum of the raw engagement counts.
func (p Post) TotalEngagement() int {
	return p.Likes + p.Retweets + p.Replies + p.Quotes
}

// RiskLevel is the classifier's aggregate verdict severity.
type RiskLevel string

const (
	RiskHigh    RiskLevel = "HIGH"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskLow     RiskLevel = "LOW"
	RiskUnknown RiskLevel = "UNKNOWN"
)

// RiskVerdict is the outcome of one classification call. Produced once per
// analysis invocation and immutable afterwards.
type RiskVerdict struct {
	RiskLevel   RiskLevel `json:"risk_level"`
	Summary     string    `json:"summary"`
	KeyFindings []string  `json:"key_findings"`
	Confidence  float64   `json:"confidence"`
	Evidence    []Post    `json:"evidence,omitempty"`
	PostCount   int       `json:"post_count"`
	DataSource  string    `json:"data_source,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// CountBucket is one time-granule of post volume from the counts endpoint.
type CountBucket struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Count int       `json:"count"`
}

// TrendSummary carries volume-trend data derived from time-bucketed counts.
// Trend data is non-critical: when the counts call fails Err is set and the
// velocity fields are zero, and callers must tolerate the absence.
type TrendSummary struct {
	Buckets               []CountBucket `json:"buckets,omitempty"`
	TotalCount            int           `json:"total_count"`
	VelocityChangePercent float64       `json:"velocity_change_percent"`
	IsSpiking             bool          `json:"is_spiking"`
	Err                   string        `json:"error,omitempty"`
}

// DeliveryStatus is the notifier's per-delivery outcome.
type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "success"
	DeliveryError   DeliveryStatus = "error"
	DeliverySkipped DeliveryStatus = "skipped"
)

// DeliveryResult reports how a notification delivery went. Notifier failures
// never abort the pipeline; they surface here instead.
type DeliveryResult struct {
	Status    DeliveryStatus `json:"status"`
	Entity    string         `json:"entity"`
	RiskLevel RiskLevel      `json:"risk_level,omitempty"`
	Channel   string         `json:"channel,omitempty"`
	MessageTS string         `json:"message_ts,omitempty"`
	Error     string         `json:"error,omitempty"`
}
