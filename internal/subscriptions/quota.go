package subscriptions

import (
	"time"

	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
)

// DailyBagAllowance is the number of free bags per eligible day.
const DailyBagAllowance = 2

// alternateDayGap is the minimum number of days between alternate_day pickups.
const alternateDayGap = 2

// Reason explains why an order is or is not covered.
type Reason string

const (
	ReasonCovered        Reason = "covered"
	ReasonNoSubscription Reason = "no_subscription"
	ReasonTooManyBags    Reason = "too_many_bags"
	ReasonCadence        Reason = "cadence"
	ReasonQuotaExhausted Reason = "quota_exhausted"
)

// Decision is the outcome of evaluating a subscription against an order.
type Decision struct {
	Covered   bool
	Reason    Reason
	UsedAfter int
}

// Evaluate decides coverage without touching storage. today must be a calendar
// date (midnight UTC) in the service timezone.
func Evaluate(sub *models.Subscription, bags int, today time.Time) Decision {
	if sub == nil || !sub.IsActive || sub.EndDate.Before(today) {
		return Decision{Reason: ReasonNoSubscription}
	}
	if bags > DailyBagAllowance {
		return Decision{Reason: ReasonTooManyBags}
	}

	if sub.Type == enums.SubscriptionAlternateDay && sub.LastOrderDate != nil {
		if daysBetween(*sub.LastOrderDate, today) < alternateDayGap {
			return Decision{Reason: ReasonCadence}
		}
	}

	used := sub.BagsUsedToday
	if sub.LastOrderDate == nil || !sameDay(*sub.LastOrderDate, today) {
		used = 0
	}
	if used+bags > DailyBagAllowance {
		return Decision{Reason: ReasonQuotaExhausted}
	}
	return Decision{Covered: true, Reason: ReasonCovered, UsedAfter: used + bags}
}

// DateOf truncates t to its calendar date in loc, expressed as midnight UTC.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
