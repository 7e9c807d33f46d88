package xapi

import (
	"time"

	"github.com/gamepop/fin-x-watcher/pkg/models"
)

type apiMetrics struct {
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
	LikeCount    int `json:"like_count"`
	QuoteCount   int `json:"quote_count"`
}

type apiUser struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Verified      bool      `json:"verified"`
	VerifiedType  string    `json:"verified_type"`
	CreatedAt     time.Time `json:"created_at"`
	PublicMetrics struct {
		FollowersCount int `json:"followers_count"`
		FollowingCount int `json:"following_count"`
	} `json:"public_metrics"`
}

type apiTweet struct {
	ID              string     `json:"id"`
	Text            string     `json:"text"`
	AuthorID        string     `json:"author_id"`
	CreatedAt       time.Time  `json:"created_at"`
	InReplyToUserID string     `json:"in_reply_to_user_id"`
	PublicMetrics   apiMetrics `json:"public_metrics"`
}

type searchResponse struct {
	Data     []apiTweet `json:"data"`
	Includes struct {
		Users []apiUser `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int `json:"result_count"`
	} `json:"meta"`
}

type countsResponse struct {
	Data []struct {
		Start      time.Time `json:"start"`
		End        time.Time `json:"end"`
		TweetCount int       `json:"tweet_count"`
	} `json:"data"`
	Meta struct {
		TotalTweetCount int `json:"total_tweet_count"`
	} `json:"meta"`
}

type rulesResponse struct {
	Data []struct {
		ID    string `json:"id"`
		Value string `json:"value"`
		Tag   string `json:"tag"`
	} `json:"data"`
}

func (t apiTweet) toPost(u apiUser) models.Post {
	author := models.Author{
		Username:     u.Username,
		Verified:     u.Verified,
		VerifiedTier: verifiedTier(u),
		Followers:    u.PublicMetrics.FollowersCount,
		Following:    u.PublicMetrics.FollowingCount,
	}
	if !u.CreatedAt.IsZero() {
		author.AccountAgeDays = int(time.Since(u.CreatedAt).Hours() / 24)
	}

	return models.Post{
		ID:        t.ID,
		Text:      t.Text,
		CreatedAt: t.CreatedAt,
		Author:    author,
		URL:       "https://x.com/" + u.Username + "/status/" + t.ID,
		IsReply:   t.InReplyToUserID != "",
		Likes:     t.PublicMetrics.LikeCount,
		Retweets:  t.PublicMetrics.RetweetCount,
		Replies:   t.PublicMetrics.ReplyCount,
		Quotes:    t.PublicMetrics.QuoteCount,
	}
}

func verifiedTier(u apiUser) models.VerifiedTier {
	switch u.VerifiedType {
	case "business":
		return models.TierBusiness
	case "government":
		return models.TierGovernment
	case "blue":
		return models.TierStandard
	default:
		if u.Verified {
			return models.TierStandard
		}
		return models.TierNone
	}
}
