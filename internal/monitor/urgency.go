package monitor

import (
	"strings"

	"github.com/gamepop/fin-x-watcher/pkg/models"
)

const (
	keywordPoints       = 10.0
	engagementDivisor   = 10.0
	verifiedBonus       = 20.0
	influencerBonus     = 10.0
	influencerFollowers = 10000
	highUrgencyScore    = 50.0
	highUrgencyKeywords = 3
	mediumUrgencyScore  = 20.0

	// highEngagementAlert is the raw engagement count above which a post is
	// alerted on regardless of its urgency class. Kept below the point where
	// the engagement term alone (engagement/10) pushes the urgency score to
	// high, so virality without risk keywords still raises an alert.
	highEngagementAlert = 300
)

// MatchKeywords returns the keywords present in the text, case-insensitive.
func MatchKeywords(text string, keywords []string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// UrgencyScore rates one streamed post: each matched keyword adds 10 points,
// engagement adds a tenth of the total, verified authors add 20 and
// high-follower authors add 10.
func UrgencyScore(post models.Post, matchedKeywords int) float64 {
	score := float64(matchedKeywords) * keywordPoints
	score += float64(post.TotalEngagement()) / engagementDivisor
	if post.Author.Verified || post.Author.VerifiedTier != models.TierNone {
		score += verifiedBonus
	}
	if post.Author.Followers > influencerFollowers {
		score += influencerBonus
	}
	return score
}

// UrgencyClass maps a score and keyword count to an urgency level.
func UrgencyClass(score float64, matchedKeywords int) models.Urgency {
	if score >= highUrgencyScore || matchedKeywords >= highUrgencyKeywords {
		return models.UrgencyHigh
	}
	if score >= mediumUrgencyScore || matchedKeywords >= 1 {
		return models.UrgencyMedium
	}
	return models.UrgencyLow
}
