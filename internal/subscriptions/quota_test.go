package subscriptions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
)

var today = time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	d := today.AddDate(0, 0, -n)
	return &d
}

func activeSub(subType enums.SubscriptionType, used int, last *time.Time) *models.Subscription {
	return &models.Subscription{
		Type:          subType,
		IsActive:      true,
		EndDate:       today.AddDate(0, 0, 10),
		BagsUsedToday: used,
		LastOrderDate: last,
	}
}

func TestEvaluate(t *testing.T) {
	expired := activeSub(enums.SubscriptionDaily, 0, nil)
	expired.EndDate = today.AddDate(0, 0, -1)
	inactive := activeSub(enums.SubscriptionDaily, 0, nil)
	inactive.IsActive = false
	endsToday := activeSub(enums.SubscriptionDaily, 0, nil)
	endsToday.EndDate = today

	cases := []struct {
		name    string
		sub     *models.Subscription
		bags    int
		covered bool
		reason  Reason
		used    int
	}{
		{"no subscription", nil, 1, false, ReasonNoSubscription, 0},
		{"expired", expired, 1, false, ReasonNoSubscription, 0},
		{"inactive", inactive, 1, false, ReasonNoSubscription, 0},
		{"ends today still counts", endsToday, 1, true, ReasonCovered, 1},
		{"three bags never covered", activeSub(enums.SubscriptionDaily, 0, nil), 3, false, ReasonTooManyBags, 0},
		{"daily fresh two bags", activeSub(enums.SubscriptionDaily, 0, nil), 2, true, ReasonCovered, 2},
		{"daily used one accepts one", activeSub(enums.SubscriptionDaily, 1, daysAgo(0)), 1, true, ReasonCovered, 2},
		{"daily used one rejects two", activeSub(enums.SubscriptionDaily, 1, daysAgo(0)), 2, false, ReasonQuotaExhausted, 0},
		{"daily used two rejects one", activeSub(enums.SubscriptionDaily, 2, daysAgo(0)), 1, false, ReasonQuotaExhausted, 0},
		{"daily resets on new day", activeSub(enums.SubscriptionDaily, 2, daysAgo(1)), 2, true, ReasonCovered, 2},
		{"alternate first order", activeSub(enums.SubscriptionAlternateDay, 0, nil), 2, true, ReasonCovered, 2},
		{"alternate same day blocked", activeSub(enums.SubscriptionAlternateDay, 1, daysAgo(0)), 1, false, ReasonCadence, 0},
		{"alternate next day blocked", activeSub(enums.SubscriptionAlternateDay, 2, daysAgo(1)), 1, false, ReasonCadence, 0},
		{"alternate two days later", activeSub(enums.SubscriptionAlternateDay, 2, daysAgo(2)), 2, true, ReasonCovered, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.sub, tc.bags, today)
			assert.Equal(t, tc.covered, got.Covered)
			assert.Equal(t, tc.reason, got.Reason)
			assert.Equal(t, tc.used, got.UsedAfter)
		})
	}
}

func TestDateOfUsesLocation(t *testing.T) {
	moscow := time.FixedZone("MSK", 3*60*60)
	lateUTC := time.Date(2026, 10, 14, 22, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), DateOf(lateUTC, moscow))
	assert.Equal(t, time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), DateOf(lateUTC, time.UTC))
}
