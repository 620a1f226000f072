package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/instatrack/instatrack/internal/models"
)

const startText = "I keep an eye on public profiles for you: followers, posts, engagement. " +
	"Add an account and get periodic reports right here."

func profileText(info *models.ProfileInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "@%s", info.Username)
	if info.FullName != "" {
		fmt.Fprintf(&sb, " — %s", info.FullName)
	}
	fmt.Fprintf(&sb, "\nFollowers: %d\nFollowing: %d\nPosts: %d",
		info.FollowersCount, info.FollowingCount, info.MediaCount)
	if info.Biography != "" {
		fmt.Fprintf(&sb, "\n\n%s", info.Biography)
	}
	return sb.String()
}

// maskedProfileText hides the counters behind the paywall.
func maskedProfileText(info *models.ProfileInfo) string {
	name := "@" + info.Username
	if info.FullName != "" {
		name += " — " + info.FullName
	}
	return name + "\nFollowers: ***\nFollowing: ***\nPosts: ***\n\nSubscribe to see the full profile and reports"
}

func privateProfileText(info *models.ProfileInfo) string {
	return "@" + info.Username + " is a private profile, tracking is not available"
}

func bigAccountText(username string) string {
	return "Following @" + username + " requires the extended plan:\n" +
		"this profile holds too much data for a regular one"
}

func claimGrantedText(decision *models.Decision) string {
	interval := time.Duration(decision.Subscription.Tariff.TrackingReportInterval) * time.Second
	return fmt.Sprintf("You now follow @%s.\nReports arrive every %s, and you have %d on-demand refreshes.",
		decision.Username, formatInterval(interval), decision.Subscription.RequestsAvailable)
}

func collectStartedText(result *models.CollectResult) string {
	return fmt.Sprintf("Collecting fresh data for @%s. You will get the report when it is done.\nRequests left: %d",
		result.Username, result.RequestsLeft)
}

func statsText(username string, stats *models.ProfileStatsDiff, media *models.MediaUserStats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "@%s over the last week\n", username)
	fmt.Fprintf(&sb, "Followers: %+d\nFollowing: %+d\nPosts: %+d\n",
		stats.FollowersCountDifference, stats.FollowingCountDifference, stats.MediaCountDifference)
	if media.Count > 0 {
		fmt.Fprintf(&sb, "\nLast %d posts\nLikes: %d\nComments: %d",
			media.Count, media.LikeCountSum, media.CommentCountSum)
		if media.PlayCountSum > 0 {
			fmt.Fprintf(&sb, "\nPlays: %d", media.PlayCountSum)
		}
	}
	return sb.String()
}

func followDiffText(diffs []*models.FollowDifference, followers bool) string {
	var names []string
	for _, diff := range diffs {
		if followers {
			names = append(names, diff.SubscribesUsernames...)
		} else {
			names = append(names, diff.UnsubscribesUsernames...)
		}
	}
	if len(names) == 0 {
		if followers {
			return "No new followers yet"
		}
		return "No unfollows yet"
	}
	var sb strings.Builder
	if followers {
		sb.WriteString("New followers:\n")
	} else {
		sb.WriteString("Unfollowed:\n")
	}
	for _, name := range names {
		sb.WriteString("@" + name + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func subscriptionsText(subs []*models.Subscription) string {
	var sb strings.Builder
	sb.WriteString("Your subscriptions\n")
	for _, sub := range subs {
		target := "free slot"
		if sub.TrackingUsername != nil {
			target = "@" + *sub.TrackingUsername
		}
		fmt.Fprintf(&sb, "\n%s\nActive until %s, %d requests left\n",
			target,
			time.Unix(sub.ExpireAt, 0).Format("02.01.2006"),
			sub.RequestsAvailable)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatInterval(d time.Duration) string {
	if d >= 24*time.Hour && d%(24*time.Hour) == 0 {
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d / time.Hour)
	if hours == 1 {
		return "hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
