package orders

import (
	"github.com/angelmondragon/courierbot-backend/pkg/config"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
)

// Pricing decides price and entry state for a new order.
type Pricing struct {
	cfg config.PricingConfig
}

func NewPricing(cfg config.PricingConfig) Pricing {
	return Pricing{cfg: cfg}
}

// Price returns the amount owed; covered orders are free.
func (p Pricing) Price(bags int, covered bool) int64 {
	if covered {
		return 0
	}
	if p.cfg.Model() == config.PricingModelFlat {
		return p.cfg.FlatPrice
	}
	return int64(bags) * p.cfg.BagPrice
}

// Entry returns the initial detailed and payment status for an order of price.
func (p Pricing) Entry(price int64) (enums.OrderDetailedStatus, enums.PaymentStatus) {
	if price == 0 || p.cfg.Model() == config.PricingModelFlat {
		return enums.OrderDetailedSearchingCourier, enums.PaymentStatusNotRequired
	}
	return enums.OrderDetailedWaitingPayment, enums.PaymentStatusPending
}
