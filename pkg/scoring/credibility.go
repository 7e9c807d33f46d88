// Package scoring computes deterministic credibility and engagement scores
// for fetched posts. All functions are pure: the same post always yields the
// same scores.
package scoring

import (
	"sort"

	"github.com/gamepop/fin-x-watcher/pkg/models"
)

const (
	retweetWeight = 3.0
	quoteWeight   = 2.0
	replyWeight   = 1.5
	likeWeight    = 1.0

	influenceFollowerUnit = 10000.0
	influenceCap          = 10.0
	influenceMultiplier   = 10.0
)

// EngagementScore weights raw engagement counts. Retweets carry the most
// signal (amplification), quotes and replies follow, likes the least.
func EngagementScore(p models.Post) float64 {
	return float64(p.Retweets)*retweetWeight +
		float64(p.Quotes)*quoteWeight +
		float64(p.Replies)*replyWeight +
		float64(p.Likes)*likeWeight
}

// VerificationWeight maps the author's verification tier to a multiplier.
func VerificationWeight(a models.Author) float64 {
	switch a.VerifiedTier {
	case models.TierBusiness, models.TierGovernment:
		return 2.0
	}
	if a.Verified || a.VerifiedTier == models.TierStandard {
		return 1.5
	}
	return 1.0
}

// InfluenceScore maps follower count to a 0..10 influence value.
func InfluenceScore(a models.Author) float64 {
	score := float64(a.Followers) / influenceFollowerUnit
	if score > influenceCap {
		return influenceCap
	}
	return score
}

// Score fills in the derived score fields of a post and returns it.
func Score(p models.Post) models.Post {
	p.EngagementScore = EngagementScore(p)
	p.VerificationWeight = VerificationWeight(p.Author)
	p.CredibilityScore = p.EngagementScore*p.VerificationWeight +
		InfluenceScore(p.Author)*influenceMultiplier
	return p
}

// ScoreAll scores every post in place.
func ScoreAll(posts []models.Post) []models.Post {
	for i := range posts {
		posts[i] = Score(posts[i])
	}
	return posts
}

// SortByCredibility orders posts most-credible-first, the standard
// presentation order for downstream classification.
func SortByCredibility(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CredibilityScore > posts[j].CredibilityScore
	})
}
