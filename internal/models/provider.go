package models

import (
	"context"
	"time"
)

// Popularity thresholds above which an account is considered "big" and
// requires a dedicated tariff to claim.
const (
	BigAccountFollowers = 20000
	BigAccountFollowing = 3000
)

// ProfileInfo is a current snapshot of a tracked account.
type ProfileInfo struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	FullName       string `json:"full_name"`
	IsPrivate      bool   `json:"is_private"`
	Biography      string `json:"biography"`
	MediaCount     int    `json:"media_count"`
	FollowersCount int    `json:"followers_count"`
	FollowingCount int    `json:"following_count"`
}

// IsBig reports whether the account exceeds the popularity threshold.
func (p *ProfileInfo) IsBig() bool {
	return p.FollowersCount > BigAccountFollowers || p.FollowingCount > BigAccountFollowing
}

// ProfileStatsDiff is a per-interval difference report for an account.
type ProfileStatsDiff struct {
	Username                 string    `json:"username"`
	MediaCountDifference     int       `json:"media_count_difference"`
	FollowersCountDifference int       `json:"followers_count_difference"`
	FollowingCountDifference int       `json:"following_count_difference"`
	PreviousStatsDate        time.Time `json:"previous_stats_date"`
}

// Unchanged reports whether all three counters are flat. A refresh that
// produces an unchanged diff must not consume the user's request quota.
func (d *ProfileStatsDiff) Unchanged() bool {
	return d.MediaCountDifference == 0 &&
		d.FollowersCountDifference == 0 &&
		d.FollowingCountDifference == 0
}

// MediaUserStats aggregates media-level stats for an account over a window.
type MediaUserStats struct {
	LikeCountSum    int `json:"like_count_sum"`
	CommentCountSum int `json:"comment_count_sum"`
	PlayCountSum    int `json:"play_count_sum"`
	Count           int `json:"count"`
}

// FollowDifference lists accounts that started or stopped following a
// tracked account within a report interval.
type FollowDifference struct {
	Username              string    `json:"username"`
	SubscribesUsernames   []string  `json:"subscribes_usernames"`
	UnsubscribesUsernames []string  `json:"unsubscribes_usernames"`
	CreatedAt             time.Time `json:"created_at"`
}

// StatsProvider is the external profile-data provider. The core only
// consumes typed responses; scraping, pagination and rate limiting live on
// the provider side.
type StatsProvider interface {
	// StartTracking registers an account with the provider and returns its
	// current snapshot. First registration may take a while on the provider side.
	StartTracking(ctx context.Context, username string) (*ProfileInfo, error)
	// GetProfile returns the current snapshot, or ErrNotFound for an unknown account.
	GetProfile(ctx context.Context, username string) (*ProfileInfo, error)
	// StatsDiff returns the change of the three profile counters over the
	// last days. A SoftProviderError means the provider has no comparable data yet.
	StatsDiff(ctx context.Context, username string, days int) (*ProfileStatsDiff, error)
	// MediaStats aggregates media-level stats over the last days.
	MediaStats(ctx context.Context, username string, days int) (*MediaUserStats, error)
	FollowersDiff(ctx context.Context, username string) ([]*FollowDifference, error)
	FollowingDiff(ctx context.Context, username string) ([]*FollowDifference, error)
	// CreateReport asks the provider to collect fresh data and deliver a
	// report back through the bot webhook.
	CreateReport(ctx context.Context, userTelegramID int64, username string) error
}
