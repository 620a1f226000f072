package bot

import (
	"fmt"
	"net/url"

	tgModels "github.com/go-telegram/bot/models"

	"github.com/instatrack/instatrack/internal/models"
)

func button(text, data string) tgModels.InlineKeyboardButton {
	return tgModels.InlineKeyboardButton{Text: text, CallbackData: data}
}

func urlButton(text, link string) tgModels.InlineKeyboardButton {
	return tgModels.InlineKeyboardButton{Text: text, URL: link}
}

func keyboard(rows ...[]tgModels.InlineKeyboardButton) *tgModels.InlineKeyboardMarkup {
	return &tgModels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (b *Bot) mainMenuKeyboard() *tgModels.InlineKeyboardMarkup {
	return keyboard(
		[]tgModels.InlineKeyboardButton{button("My trackings", "menu:trackings")},
		[]tgModels.InlineKeyboardButton{button("Follow an account", "menu:add")},
		[]tgModels.InlineKeyboardButton{button("Subscription", "menu:subscription")},
	)
}

func (b *Bot) toAddTrackingKeyboard() *tgModels.InlineKeyboardMarkup {
	return keyboard(
		[]tgModels.InlineKeyboardButton{button("Follow an account", "menu:add")},
		[]tgModels.InlineKeyboardButton{button("Menu", "menu:main")},
	)
}

func (b *Bot) toTrackingKeyboard(username, text string) *tgModels.InlineKeyboardMarkup {
	return keyboard(
		[]tgModels.InlineKeyboardButton{button(text, "track:show:"+username)},
	)
}

func (b *Bot) trackingsListButtonKeyboard() *tgModels.InlineKeyboardMarkup {
	return keyboard(
		[]tgModels.InlineKeyboardButton{button("My trackings", "menu:trackings")},
	)
}

func (b *Bot) trackingsListKeyboard(trackings []*models.Tracking) *tgModels.InlineKeyboardMarkup {
	rows := make([][]tgModels.InlineKeyboardButton, 0, len(trackings)+1)
	for _, t := range trackings {
		rows = append(rows, []tgModels.InlineKeyboardButton{
			button("@"+t.InstagramUsername, "track:show:"+t.InstagramUsername),
		})
	}
	rows = append(rows, []tgModels.InlineKeyboardButton{button("Menu", "menu:main")})
	return keyboard(rows...)
}

// trackingKeyboard is the account screen: actions for a claimed account,
// a claim button otherwise.
func (b *Bot) trackingKeyboard(username string, claimed bool) *tgModels.InlineKeyboardMarkup {
	if !claimed {
		return keyboard(
			[]tgModels.InlineKeyboardButton{button("Start tracking", "track:claim:"+username)},
			[]tgModels.InlineKeyboardButton{button("Menu", "menu:main")},
		)
	}
	return keyboard(
		[]tgModels.InlineKeyboardButton{button("Refresh data", "track:collect:"+username)},
		[]tgModels.InlineKeyboardButton{button("Statistics", "track:stats:"+username)},
		[]tgModels.InlineKeyboardButton{
			button("New followers", "track:followers:"+username),
			button("New unfollows", "track:following:"+username),
		},
		[]tgModels.InlineKeyboardButton{button("Stop tracking", "track:del:"+username)},
		[]tgModels.InlineKeyboardButton{button("Menu", "menu:main")},
	)
}

func (b *Bot) statsKeyboard(username string) *tgModels.InlineKeyboardMarkup {
	return keyboard(
		[]tgModels.InlineKeyboardButton{
			button("New followers", "track:followers:"+username),
			button("New unfollows", "track:following:"+username),
		},
		[]tgModels.InlineKeyboardButton{button("Back", "track:show:"+username)},
	)
}

// checkoutLink sends the user to the gateway paywall page with the payment
// context the webhook's Data block echoes back.
func (b *Bot) checkoutLink(tariff *models.TariffPlan, username string, product models.PaymentProduct) string {
	q := url.Values{}
	q.Set("tariff_id", fmt.Sprint(tariff.ID))
	q.Set("product", string(product))
	if username != "" {
		q.Set("tracking_username", username)
	}
	return b.paywallURL + "?" + q.Encode()
}

func tariffLabel(t *models.TariffPlan) string {
	return fmt.Sprintf("%d RUB / %d days / %d requests", t.PaymentAmount, t.AccessDays, t.RequestsBalance)
}

func (b *Bot) paywallKeyboard(tariffs []*models.TariffPlan, username string) *tgModels.InlineKeyboardMarkup {
	rows := make([][]tgModels.InlineKeyboardButton, 0, len(tariffs)+1)
	for _, t := range tariffs {
		if t.BigAccounts {
			continue
		}
		rows = append(rows, []tgModels.InlineKeyboardButton{
			urlButton(tariffLabel(t), b.checkoutLink(t, username, models.ProductSubscription)),
		})
	}
	rows = append(rows, []tgModels.InlineKeyboardButton{button("Menu", "menu:main")})
	return keyboard(rows...)
}

// bigAccountPaywallKeyboard offers only the plans allowed to claim accounts
// above the popularity threshold.
func (b *Bot) bigAccountPaywallKeyboard(tariffs []*models.TariffPlan, username string) *tgModels.InlineKeyboardMarkup {
	rows := make([][]tgModels.InlineKeyboardButton, 0, len(tariffs)+1)
	for _, t := range tariffs {
		if !t.BigAccounts {
			continue
		}
		rows = append(rows, []tgModels.InlineKeyboardButton{
			urlButton(tariffLabel(t), b.checkoutLink(t, username, models.ProductSubscription)),
		})
	}
	rows = append(rows, []tgModels.InlineKeyboardButton{button("Menu", "menu:main")})
	return keyboard(rows...)
}

// requestsPaywallKeyboard renders checkout links that top up the request
// balance instead of buying a new slot.
func (b *Bot) requestsPaywallKeyboard(tariffs []*models.TariffPlan, username string) *tgModels.InlineKeyboardMarkup {
	rows := make([][]tgModels.InlineKeyboardButton, 0, len(tariffs)+1)
	for _, t := range tariffs {
		label := fmt.Sprintf("%d requests for %d RUB", t.RequestsBalance, t.PaymentAmount)
		rows = append(rows, []tgModels.InlineKeyboardButton{
			urlButton(label, b.checkoutLink(t, username, models.ProductRequests)),
		})
	}
	rows = append(rows, []tgModels.InlineKeyboardButton{button("Back", "track:show:"+username)})
	return keyboard(rows...)
}

// buyRequestsKeyboard is the affordance shown when the quota runs out.
func (b *Bot) buyRequestsKeyboard(username string) *tgModels.InlineKeyboardMarkup {
	return keyboard(
		[]tgModels.InlineKeyboardButton{button("Buy more requests", "track:buyreq:"+username)},
		[]tgModels.InlineKeyboardButton{button("Back", "track:show:"+username)},
	)
}
