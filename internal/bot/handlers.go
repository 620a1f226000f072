package bot

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"

	"github.com/instatrack/instatrack/internal/models"
)

func (b *Bot) handleStart(ctx context.Context, _ *bot.Bot, update *tgModels.Update) {
	user := update.Message.From
	if user == nil {
		b.logger.Error("User is nil")
		return
	}
	err := b.repo.UpsertUser(&models.User{
		TelegramID:       user.ID,
		TelegramUsername: user.Username,
		TelegramName:     strings.TrimSpace(user.FirstName + " " + user.LastName),
	})
	if err != nil {
		b.logger.Error("Failed to upsert user: ", err)
	}
	b.send(ctx, user.ID, startText, b.mainMenuKeyboard())
}

// handleMenu routes "menu:*" callbacks: main menu, tracking list, add form,
// subscription info.
func (b *Bot) handleMenu(ctx context.Context, _ *bot.Bot, update *tgModels.Update) {
	query := update.CallbackQuery
	b.answer(ctx, query)
	userID := query.From.ID

	switch query.Data {
	case "menu:main":
		b.setPendingInput(userID, false)
		b.send(ctx, userID, startText, b.mainMenuKeyboard())
	case "menu:trackings":
		b.showTrackings(ctx, userID)
	case "menu:add":
		b.setPendingInput(userID, true)
		b.send(ctx, userID, "Send a link or a username to follow", nil)
	case "menu:subscription":
		b.showSubscriptions(ctx, userID)
	default:
		b.logger.Debug("Unknown menu callback ", "data ", query.Data)
	}
}

// handleTracking routes "track:<op>:<username>" callbacks.
func (b *Bot) handleTracking(ctx context.Context, _ *bot.Bot, update *tgModels.Update) {
	query := update.CallbackQuery
	b.answer(ctx, query)
	userID := query.From.ID

	parts := callbackParts(query.Data)
	if len(parts) < 3 {
		b.logger.Debug("Malformed tracking callback ", "data ", query.Data)
		return
	}
	op, username := parts[1], parts[2]

	switch op {
	case "show":
		b.showTracking(ctx, userID, username)
	case "claim":
		b.claimTracking(ctx, userID, username)
	case "collect":
		b.collectData(ctx, userID, username)
	case "stats":
		b.showStats(ctx, userID, username)
	case "followers":
		b.showFollowDiff(ctx, userID, username, true)
	case "following":
		b.showFollowDiff(ctx, userID, username, false)
	case "buyreq":
		b.offerRequests(ctx, userID, username)
	case "del":
		b.untrack(ctx, userID, username)
	default:
		b.logger.Debug("Unknown tracking callback ", "data ", query.Data)
	}
}

// defaultHandler consumes free text. When the user was asked for an account
// name, the text is treated as one; everything else gets the main menu.
func (b *Bot) defaultHandler(ctx context.Context, _ *bot.Bot, update *tgModels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	userID := update.Message.From.ID
	if !b.hasPendingInput(userID) {
		b.send(ctx, userID, startText, b.mainMenuKeyboard())
		return
	}
	b.setPendingInput(userID, false)

	username := extractUsername(update.Message.Text)
	if username == "" {
		b.send(ctx, userID, "That does not look like a profile link or username", b.toAddTrackingKeyboard())
		return
	}

	b.send(ctx, userID, "Loading profile data... A first-time account can take a while to collect", nil)

	info, err := b.provider.StartTracking(ctx, username)
	if err != nil {
		if soft, ok := models.AsSoftError(err); ok {
			b.send(ctx, userID, soft.Detail, b.toAddTrackingKeyboard())
			return
		}
		if errors.Is(err, models.ErrNotFound) {
			b.send(ctx, userID, "Profile "+username+" was not found", b.toAddTrackingKeyboard())
			return
		}
		b.logger.Error("Failed to start tracking: ", err)
		b.send(ctx, userID, "The data service is unavailable, try again later", b.toAddTrackingKeyboard())
		return
	}
	b.renderProfile(ctx, userID, info)
}

// extractUsername accepts a bare handle, an @handle or a profile URL.
func extractUsername(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	input = strings.TrimPrefix(input, "@")
	u, err := url.Parse(input)
	if err != nil {
		return ""
	}
	if u.Host == "" {
		if strings.ContainsAny(input, " /") {
			return ""
		}
		return input
	}
	if u.Host != "instagram.com" && u.Host != "www.instagram.com" {
		return ""
	}
	return strings.Trim(u.Path, "/")
}

// renderProfile shows a profile according to the viewer's entitlement:
// masked without an active subscription, full with one.
func (b *Bot) renderProfile(ctx context.Context, userID int64, info *models.ProfileInfo) {
	decision, err := b.entitlement.Decide(ctx, userID, info.Username)
	if err != nil {
		b.logger.Error("Failed to decide entitlement: ", err)
		b.send(ctx, userID, "Something went wrong, try again later", b.toAddTrackingKeyboard())
		return
	}
	switch decision.State {
	case models.DecisionNoActiveSubscription:
		b.send(ctx, userID, maskedProfileText(info), b.paywallKeyboard(decision.Tariffs, info.Username))
	case models.DecisionBoundAccess:
		b.send(ctx, userID, profileText(info), b.trackingKeyboard(info.Username, true))
	default:
		b.send(ctx, userID, profileText(info), b.trackingKeyboard(info.Username, false))
	}
}

func (b *Bot) showTracking(ctx context.Context, userID int64, username string) {
	info, err := b.provider.GetProfile(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			b.send(ctx, userID, "Profile "+username+" was not found", b.toAddTrackingKeyboard())
			return
		}
		b.logger.Error("Failed to get profile: ", err)
		b.send(ctx, userID, "The data service is unavailable, try again later", b.toAddTrackingKeyboard())
		return
	}
	if info.IsPrivate {
		b.send(ctx, userID, privateProfileText(info), b.toAddTrackingKeyboard())
		return
	}
	b.renderProfile(ctx, userID, info)
}

// claimTracking binds a free slot to the account and reports the outcome.
func (b *Bot) claimTracking(ctx context.Context, userID int64, username string) {
	decision, err := b.entitlement.Claim(ctx, userID, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			b.send(ctx, userID, "Profile "+username+" was not found", b.toAddTrackingKeyboard())
			return
		}
		b.logger.Error("Failed to claim tracking: ", err)
		b.send(ctx, userID, "Something went wrong, try again later", b.toAddTrackingKeyboard())
		return
	}
	b.renderDecision(ctx, userID, decision)
}

// renderDecision maps every decision state onto a screen with an actionable
// next step.
func (b *Bot) renderDecision(ctx context.Context, userID int64, decision *models.Decision) {
	switch decision.State {
	case models.DecisionNoActiveSubscription:
		b.send(ctx, userID, "You have no active subscription", b.paywallKeyboard(decision.Tariffs, decision.Username))
	case models.DecisionNoFreeSlot:
		b.send(ctx, userID, "You reached the maximum number of followed accounts",
			b.paywallKeyboard(decision.Tariffs, decision.Username))
	case models.DecisionAccountIneligible:
		b.send(ctx, userID, bigAccountText(decision.Username),
			b.bigAccountPaywallKeyboard(decision.Tariffs, decision.Username))
	case models.DecisionClaimGranted:
		b.send(ctx, userID, claimGrantedText(decision), b.toTrackingKeyboard(decision.Username, "Open tracking"))
	case models.DecisionBoundAccess:
		b.showTracking(ctx, userID, decision.Username)
	}
}

// collectData runs the quota-consuming refresh.
func (b *Bot) collectData(ctx context.Context, userID int64, username string) {
	result, err := b.entitlement.CollectData(ctx, userID, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			b.send(ctx, userID, "No subscription is attached to "+username, b.toAddTrackingKeyboard())
			return
		}
		b.logger.Error("Failed to collect data: ", err)
		b.send(ctx, userID, "The data service is unavailable, try again later", b.toTrackingKeyboard(username, "Back"))
		return
	}
	switch result.Outcome {
	case models.CollectQuotaExhausted:
		b.send(ctx, userID, "Your request balance is empty", b.buyRequestsKeyboard(username))
	case models.CollectNoChange:
		b.send(ctx, userID, "Nothing changed since the last report", b.toTrackingKeyboard(username, "Back"))
	case models.CollectSoftFailure:
		b.send(ctx, userID, result.Detail, b.toTrackingKeyboard(username, "Back"))
	case models.CollectStarted:
		b.send(ctx, userID, collectStartedText(result), b.toTrackingKeyboard(username, "Back"))
	}
}

func (b *Bot) showStats(ctx context.Context, userID int64, username string) {
	stats, err := b.provider.StatsDiff(ctx, username, 7)
	if err != nil {
		if soft, ok := models.AsSoftError(err); ok {
			b.send(ctx, userID, soft.Detail, b.toTrackingKeyboard(username, "Back"))
			return
		}
		b.logger.Error("Failed to get stats: ", err)
		b.send(ctx, userID, "The data service is unavailable, try again later", b.toTrackingKeyboard(username, "Back"))
		return
	}
	media, err := b.provider.MediaStats(ctx, username, 7)
	if err != nil {
		if soft, ok := models.AsSoftError(err); ok {
			b.send(ctx, userID, soft.Detail, b.toTrackingKeyboard(username, "Back"))
			return
		}
		b.logger.Error("Failed to get media stats: ", err)
		b.send(ctx, userID, "The data service is unavailable, try again later", b.toTrackingKeyboard(username, "Back"))
		return
	}
	b.send(ctx, userID, statsText(username, stats, media), b.statsKeyboard(username))
}

// showFollowDiff lists who followed or unfollowed since the last report.
func (b *Bot) showFollowDiff(ctx context.Context, userID int64, username string, followers bool) {
	var diffs []*models.FollowDifference
	var err error
	if followers {
		diffs, err = b.provider.FollowersDiff(ctx, username)
	} else {
		diffs, err = b.provider.FollowingDiff(ctx, username)
	}
	if err != nil {
		if soft, ok := models.AsSoftError(err); ok {
			b.send(ctx, userID, soft.Detail, b.toTrackingKeyboard(username, "Back"))
			return
		}
		b.logger.Error("Failed to get follow differences: ", err)
		b.send(ctx, userID, "The data service is unavailable, try again later", b.toTrackingKeyboard(username, "Back"))
		return
	}
	b.send(ctx, userID, followDiffText(diffs, followers), b.toTrackingKeyboard(username, "Back"))
}

func (b *Bot) untrack(ctx context.Context, userID int64, username string) {
	if err := b.entitlement.Untrack(ctx, userID, username); err != nil && !errors.Is(err, models.ErrNotFound) {
		b.logger.Error("Failed to remove tracking: ", err)
		b.send(ctx, userID, "Something went wrong, try again later", b.toTrackingKeyboard(username, "Back"))
		return
	}
	b.send(ctx, userID, "You no longer follow "+username, b.trackingsListButtonKeyboard())
}

// offerRequests renders checkout links for request top-ups on the account's
// current plan family.
func (b *Bot) offerRequests(ctx context.Context, userID int64, username string) {
	tariffs, err := b.entitlement.Tariffs()
	if err != nil {
		b.logger.Error("Failed to list tariffs: ", err)
		b.send(ctx, userID, "Something went wrong, try again later", b.toTrackingKeyboard(username, "Back"))
		return
	}
	b.send(ctx, userID, "Choose a request package for "+username, b.requestsPaywallKeyboard(tariffs, username))
}

func (b *Bot) showTrackings(ctx context.Context, userID int64) {
	trackings, err := b.entitlement.Trackings(userID)
	if err != nil {
		b.logger.Error("Failed to list trackings: ", err)
		b.send(ctx, userID, "Something went wrong, try again later", b.mainMenuKeyboard())
		return
	}
	if len(trackings) == 0 {
		b.send(ctx, userID, "You do not follow anyone yet", b.toAddTrackingKeyboard())
		return
	}
	b.send(ctx, userID, "Accounts you follow", b.trackingsListKeyboard(trackings))
}

func (b *Bot) showSubscriptions(ctx context.Context, userID int64) {
	subs, err := b.entitlement.ActiveSubscriptions(userID)
	if err != nil {
		b.logger.Error("Failed to list subscriptions: ", err)
		b.send(ctx, userID, "Something went wrong, try again later", b.mainMenuKeyboard())
		return
	}
	if len(subs) == 0 {
		tariffs, err := b.entitlement.Tariffs()
		if err != nil {
			b.logger.Error("Failed to list tariffs: ", err)
			return
		}
		b.send(ctx, userID, "You have no active subscription", b.paywallKeyboard(tariffs, ""))
		return
	}
	b.send(ctx, userID, subscriptionsText(subs), b.mainMenuKeyboard())
}
