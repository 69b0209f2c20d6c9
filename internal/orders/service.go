package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/angelmondragon/courierbot-backend/pkg/db"
	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/courierbot-backend/pkg/errors"
	"github.com/angelmondragon/courierbot-backend/pkg/logger"
	"github.com/angelmondragon/courierbot-backend/pkg/metrics"
	"github.com/angelmondragon/courierbot-backend/pkg/yookassa"
)

const (
	maxAddressLength = 500
	maxBags          = 100
	// AvailableLimit caps the courier's list of open orders.
	AvailableLimit = 10
	historyLimit   = 20
	ratingMin      = 1
	ratingMax      = 5
)

var activeStatuses = []enums.OrderDetailedStatus{
	enums.OrderDetailedWaitingPayment,
	enums.OrderDetailedSearchingCourier,
	enums.OrderDetailedCourierOnWay,
	enums.OrderDetailedCourierWorking,
}

var courierActiveStatuses = []enums.OrderDetailedStatus{
	enums.OrderDetailedCourierOnWay,
	enums.OrderDetailedCourierWorking,
}

// Service drives the order lifecycle.
type Service interface {
	Preview(ctx context.Context, clientID int64, bags int) (Preview, error)
	Create(ctx context.Context, input CreateInput) (*CreateResult, error)
	RetryPayment(ctx context.Context, orderID, actorID int64) (*models.Order, error)
	ConfirmPayment(ctx context.Context, orderID int64, paymentID string) (*models.Order, error)
	Accept(ctx context.Context, orderID, actorID int64, role enums.Role) (*models.Order, error)
	StartWork(ctx context.Context, orderID, actorID int64) (*models.Order, error)
	Complete(ctx context.Context, orderID, actorID int64) (*models.Order, error)
	Cancel(ctx context.Context, orderID, actorID int64, role enums.Role) (*models.Order, error)
	ForceStatus(ctx context.Context, orderID, actorID int64, role enums.Role, target enums.OrderDetailedStatus) (*models.Order, error)
	Rate(ctx context.Context, orderID, clientID int64, stars int) (*models.Rating, error)

	Get(ctx context.Context, orderID int64) (*models.Order, error)
	ListAvailable(ctx context.Context) ([]models.Order, error)
	ListCourierActive(ctx context.Context, courierID int64) ([]models.Order, error)
	ListClientActive(ctx context.Context, clientID int64) ([]models.Order, error)
	ListClientHistory(ctx context.Context, clientID int64) ([]models.Order, error)
	ListCourierHistory(ctx context.Context, courierID int64) ([]models.Order, error)
	ListActive(ctx context.Context) ([]models.Order, error)
	CourierStats(ctx context.Context, courierID int64) (*CourierSummary, error)
	Summary(ctx context.Context) (Totals, error)
	OperatorStats(ctx context.Context) (*OperatorSummary, error)
}

type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Pricing  Pricing
	Quota    Quota
	Payments yookassa.Gateway
	Sessions SessionCleaner
	Notifier Notifier
	Metrics  transitionMetrics
	Logger   *logger.Logger
	// Location sets the day boundary for daily counters; UTC when nil.
	Location *time.Location
	Now      func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	pricing  Pricing
	quota    Quota
	payments yookassa.Gateway
	sessions SessionCleaner
	notifier Notifier
	metrics  transitionMetrics
	logg     *logger.Logger
	loc      *time.Location
	now      func() time.Time
}

// NewService builds the order service. Quota, Payments, Notifier and Metrics are optional.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session cleaner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		pricing:  params.Pricing,
		quota:    params.Quota,
		payments: params.Payments,
		sessions: params.Sessions,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     logg,
		loc:      loc,
		now:      now,
	}, nil
}

// Description is the payment purpose shown to the client.
func Description(bags int) string {
	return fmt.Sprintf("Вывоз мусора (%s)", BagsLabel(bags))
}

// BagsLabel renders "N пакет(а/ов)".
func BagsLabel(n int) string {
	return fmt.Sprintf("%d %s", n, pluralBags(n))
}

func pluralBags(n int) string {
	mod10, mod100 := n%10, n%100
	switch {
	case mod10 == 1 && mod100 != 11:
		return "пакет"
	case mod10 >= 2 && mod10 <= 4 && (mod100 < 12 || mod100 > 14):
		return "пакета"
	}
	return "пакетов"
}

func validateBags(bags int) error {
	if bags < 1 || bags > maxBags {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "количество пакетов должно быть от 1 до %d", maxBags)
	}
	return nil
}

func (s *service) Preview(ctx context.Context, clientID int64, bags int) (Preview, error) {
	if err := validateBags(bags); err != nil {
		return Preview{}, err
	}
	preview := Preview{Bags: bags}
	if s.quota != nil {
		decision, err := s.quota.Quote(ctx, clientID, bags)
		if err != nil {
			return Preview{}, err
		}
		preview.Covered = decision.Covered
		preview.Reason = decision.Reason
	}
	preview.Price = s.pricing.Price(bags, preview.Covered)
	return preview, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	address := strings.TrimSpace(input.Address)
	if address == "" || utf8.RuneCountInString(address) > maxAddressLength {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "адрес должен содержать от 1 до %d символов", maxAddressLength)
	}
	if err := validateBags(input.Bags); err != nil {
		return nil, err
	}

	result := &CreateResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		covered := false
		if s.quota != nil {
			ok, err := s.quota.Consume(ctx, tx, input.ClientID, input.Bags)
			if err != nil {
				return err
			}
			covered = ok
		}
		price := s.pricing.Price(input.Bags, covered)
		detailed, payment := s.pricing.Entry(price)

		order := models.Order{
			ClientID:            input.ClientID,
			Address:             address,
			Description:         Description(input.Bags),
			Price:               price,
			BagCount:            input.Bags,
			IsSubscriptionOrder: covered,
			DetailedStatus:      detailed,
			PaymentStatus:       payment,
		}
		if err := s.repo.WithTx(tx).Create(ctx, &order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		result.Order = order
		result.Covered = covered
		return nil
	})
	if err != nil {
		s.observe("create", err)
		return nil, err
	}
	s.observe("create", nil)
	if s.metrics != nil {
		s.metrics.ObserveCreated(result.Covered)
	}

	if result.Order.DetailedStatus == enums.OrderDetailedWaitingPayment {
		order, err := s.attachPayment(ctx, &result.Order)
		if err != nil {
			result.PaymentErr = err
		} else {
			result.Order = *order
		}
		return result, nil
	}

	s.notify(ctx, Event{Kind: EventCreated, Order: result.Order, ActorID: input.ClientID})
	return result, nil
}

// attachPayment creates the provider payment for an order that awaits it. The
// order stays in waiting_payment on failure.
func (s *service) attachPayment(ctx context.Context, order *models.Order) (*models.Order, error) {
	ctx = s.logg.WithOrderID(ctx, order.ID)
	if s.payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "платёжная система недоступна")
	}
	payment, err := s.payments.CreatePayment(ctx, order.Price, order.Description, order.ID)
	if err != nil {
		s.logg.Error(ctx, "create payment failed", err)
		return nil, err
	}
	ok, err := s.repo.SetPayment(ctx, order.ID, payment.ID, payment.URL)
	if err != nil {
		s.logg.Error(ctx, "store payment failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "заказ больше не ожидает оплаты")
	}
	order.PaymentID = &payment.ID
	order.PaymentURL = &payment.URL
	return order, nil
}

// RetryPayment returns the stored payment link or creates one when none exists.
func (s *service) RetryPayment(ctx context.Context, orderID, actorID int64) (*models.Order, error) {
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if order.ClientID != actorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "это не ваш заказ")
	}
	if order.DetailedStatus != enums.OrderDetailedWaitingPayment || order.PaymentStatus != enums.PaymentStatusPending {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "заказ #%d не ожидает оплаты", order.ID)
	}
	if order.PaymentURL != nil && *order.PaymentURL != "" {
		return order, nil
	}
	return s.attachPayment(ctx, order)
}

func (s *service) ConfirmPayment(ctx context.Context, orderID int64, paymentID string) (*models.Order, error) {
	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.PaymentID == nil || *order.PaymentID != paymentID {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "payment %s does not belong to order %d", paymentID, orderID)
		}
		if order.PaymentStatus != enums.PaymentStatusPending || order.DetailedStatus != enums.OrderDetailedWaitingPayment {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order %d is not awaiting payment", orderID)
		}
		pending := enums.PaymentStatusPending
		now := s.now().UTC()
		updated, err = s.apply(ctx, repo, order, Change{
			To:             enums.OrderDetailedSearchingCourier,
			RequirePayment: &pending,
			Fields: map[string]any{
				"payment_status": enums.PaymentStatusSucceeded,
				"paid_at":        now,
			},
		})
		if err != nil {
			return err
		}
		updated.PaymentStatus = enums.PaymentStatusSucceeded
		updated.PaidAt = &now
		return nil
	})
	s.observe("confirm_payment", err)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, Event{Kind: EventPaymentConfirmed, Order: *updated, ActorID: updated.ClientID, Previous: enums.OrderDetailedWaitingPayment})
	return updated, nil
}

func (s *service) Accept(ctx context.Context, orderID, actorID int64, role enums.Role) (*models.Order, error) {
	if role != enums.RoleCourier {
		s.observe("accept", errForbidden)
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "только курьер может принять заказ")
	}
	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.CourierID != nil {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "заказ #%d уже принят другим курьером", order.ID)
		}
		if order.DetailedStatus != enums.OrderDetailedSearchingCourier {
			return stateConflict(order)
		}
		now := s.now().UTC()
		updated, err = s.apply(ctx, repo, order, Change{
			To:               enums.OrderDetailedCourierOnWay,
			RequireNoCourier: true,
			Fields:           map[string]any{"courier_id": actorID, "accepted_at": now},
		})
		if err != nil {
			return err
		}
		updated.CourierID = &actorID
		updated.AcceptedAt = &now
		return nil
	})
	s.observe("accept", err)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, Event{Kind: EventAccepted, Order: *updated, ActorID: actorID, Previous: enums.OrderDetailedSearchingCourier})
	return updated, nil
}

func (s *service) StartWork(ctx context.Context, orderID, actorID int64) (*models.Order, error) {
	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadBound(ctx, repo, orderID, actorID)
		if err != nil {
			return err
		}
		if order.DetailedStatus != enums.OrderDetailedCourierOnWay {
			return stateConflict(order)
		}
		updated, err = s.apply(ctx, repo, order, Change{
			To:             enums.OrderDetailedCourierWorking,
			RequireCourier: &actorID,
		})
		return err
	})
	s.observe("start_work", err)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, Event{Kind: EventWorkStarted, Order: *updated, ActorID: actorID, Previous: enums.OrderDetailedCourierOnWay})
	return updated, nil
}

func (s *service) Complete(ctx context.Context, orderID, actorID int64) (*models.Order, error) {
	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadBound(ctx, repo, orderID, actorID)
		if err != nil {
			return err
		}
		if order.DetailedStatus != enums.OrderDetailedCourierWorking {
			return stateConflict(order)
		}
		now := s.now().UTC()
		updated, err = s.apply(ctx, repo, order, Change{
			To:             enums.OrderDetailedCompleted,
			RequireCourier: &actorID,
			Fields:         map[string]any{"completed_at": now},
		})
		if err != nil {
			return err
		}
		updated.CompletedAt = &now
		if err := repo.AddCourierEarnings(ctx, actorID, order.Price); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update courier stats")
		}
		return s.sessions.ClearForOrder(ctx, tx, order.ID, actorID, order.ClientID)
	})
	s.observe("complete", err)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, Event{Kind: EventCompleted, Order: *updated, ActorID: actorID, Previous: enums.OrderDetailedCourierWorking})
	return updated, nil
}

func (s *service) Cancel(ctx context.Context, orderID, actorID int64, role enums.Role) (*models.Order, error) {
	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.ClientID != actorID && !role.IsStaff() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "отменить заказ может только его владелец")
		}
		if order.DetailedStatus != enums.OrderDetailedSearchingCourier {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "заказ #%d нельзя отменить: курьер уже назначен или заказ закрыт", order.ID)
		}
		updated, err = s.apply(ctx, repo, order, Change{
			To:               enums.OrderDetailedCancelled,
			RequireNoCourier: true,
		})
		if err != nil {
			return err
		}
		return s.sessions.ClearForOrder(ctx, tx, order.ID)
	})
	s.observe("cancel", err)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, Event{Kind: EventCancelled, Order: *updated, ActorID: actorID, Previous: enums.OrderDetailedSearchingCourier})
	return updated, nil
}

func (s *service) ForceStatus(ctx context.Context, orderID, actorID int64, role enums.Role, target enums.OrderDetailedStatus) (*models.Order, error) {
	if !role.IsStaff() {
		s.observe("force_status", errForbidden)
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "недостаточно прав")
	}
	if !target.IsValid() {
		s.observe("force_status", errValidation)
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "неизвестный статус %q", target)
	}
	var (
		updated  *models.Order
		previous enums.OrderDetailedStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.DetailedStatus.IsTerminal() {
			return stateConflict(order)
		}
		if order.DetailedStatus == target {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "заказ #%d уже в статусе %s", order.ID, target)
		}
		previous = order.DetailedStatus
		change := Change{To: target}
		unbind := target == enums.OrderDetailedSearchingCourier || target == enums.OrderDetailedWaitingPayment
		switch {
		case target == enums.OrderDetailedCompleted:
			change.Fields = map[string]any{"completed_at": s.now().UTC()}
		case unbind:
			// back in the pool: the order must be claimable and cancellable again
			change.Fields = map[string]any{"courier_id": nil, "accepted_at": nil}
		}
		updated, err = s.apply(ctx, repo, order, change)
		if err != nil {
			return err
		}
		if unbind {
			updated.CourierID = nil
			updated.AcceptedAt = nil
			if order.CourierID != nil {
				if err := s.sessions.ClearForOrder(ctx, tx, order.ID, *order.CourierID); err != nil {
					return err
				}
			}
		}
		if target.IsTerminal() {
			return s.sessions.ClearForOrder(ctx, tx, order.ID)
		}
		return nil
	})
	s.observe("force_status", err)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, Event{Kind: EventStatusForced, Order: *updated, ActorID: actorID, Previous: previous})
	return updated, nil
}

func (s *service) Rate(ctx context.Context, orderID, clientID int64, stars int) (*models.Rating, error) {
	if stars < ratingMin || stars > ratingMax {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "оценка должна быть от %d до %d", ratingMin, ratingMax)
	}
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if order.ClientID != clientID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "оценить заказ может только его владелец")
	}
	if order.DetailedStatus != enums.OrderDetailedCompleted || order.CourierID == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "заказ #%d ещё не выполнен", order.ID)
	}
	if _, err := s.repo.FindRating(ctx, order.ID); err == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "заказ #%d уже оценён", order.ID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rating")
	}

	rating := &models.Rating{OrderID: order.ID, ClientID: clientID, CourierID: *order.CourierID, Rating: stars}
	if err := s.repo.CreateRating(ctx, rating); err != nil {
		if db.IsUniqueViolation(err, "ratings_order_id_key") {
			return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "заказ #%d уже оценён", order.ID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create rating")
	}
	return rating, nil
}

func (s *service) Get(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.load(ctx, s.repo, orderID)
}

func (s *service) ListAvailable(ctx context.Context) ([]models.Order, error) {
	return wrapList(s.repo.ListAvailable(ctx, AvailableLimit))
}

func (s *service) ListCourierActive(ctx context.Context, courierID int64) ([]models.Order, error) {
	return wrapList(s.repo.ListForCourier(ctx, courierID, courierActiveStatuses, 0))
}

func (s *service) ListClientActive(ctx context.Context, clientID int64) ([]models.Order, error) {
	return wrapList(s.repo.ListForClient(ctx, clientID, activeStatuses, 0))
}

func (s *service) ListClientHistory(ctx context.Context, clientID int64) ([]models.Order, error) {
	return wrapList(s.repo.ListForClient(ctx, clientID, nil, historyLimit))
}

func (s *service) ListCourierHistory(ctx context.Context, courierID int64) ([]models.Order, error) {
	return wrapList(s.repo.ListForCourier(ctx, courierID, terminalStatuses, historyLimit))
}

func (s *service) ListActive(ctx context.Context) ([]models.Order, error) {
	return wrapList(s.repo.ListByStatus(ctx, activeStatuses, 0))
}

func (s *service) CourierStats(ctx context.Context, courierID int64) (*CourierSummary, error) {
	summary := &CourierSummary{CourierID: courierID}
	stats, err := s.repo.FindCourierStats(ctx, courierID)
	switch {
	case err == nil:
		summary.TotalOrders = stats.TotalOrders
		summary.TotalEarnings = stats.TotalEarnings
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load courier stats")
	}
	avg, count, err := s.repo.AverageRating(ctx, courierID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load courier rating")
	}
	summary.AverageRating = avg
	summary.RatingsCount = count
	if summary.TotalOrders > 0 {
		summary.AverageCheck = float64(summary.TotalEarnings) / float64(summary.TotalOrders)
	}
	return summary, nil
}

func (s *service) Summary(ctx context.Context) (Totals, error) {
	totals, err := s.repo.Totals(ctx)
	if err != nil {
		return Totals{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order totals")
	}
	return totals, nil
}

func (s *service) OperatorStats(ctx context.Context) (*OperatorSummary, error) {
	totals, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order totals")
	}
	local := s.now().In(s.loc)
	y, m, d := local.Date()
	today, err := s.repo.CountCompletedSince(ctx, time.Date(y, m, d, 0, 0, 0, 0, s.loc))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count completed orders")
	}
	return &OperatorSummary{
		Pending:        totals.Pending,
		InProgress:     totals.Active - totals.Pending,
		CompletedToday: today,
	}, nil
}

func (s *service) load(ctx context.Context, repo Repository, orderID int64) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "заказ #%d не найден", orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) loadBound(ctx context.Context, repo Repository, orderID, actorID int64) (*models.Order, error) {
	order, err := s.load(ctx, repo, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsBoundCourier(actorID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "это не ваш заказ")
	}
	return order, nil
}

// apply runs the conditional update and returns the order in its new state.
func (s *service) apply(ctx context.Context, repo Repository, order *models.Order, change Change) (*models.Order, error) {
	ok, err := repo.Transition(ctx, order.ID, order.DetailedStatus, change)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "статус заказа #%d изменился, попробуйте ещё раз", order.ID)
	}
	next := *order
	next.DetailedStatus = change.To
	next.Status = enums.Coarsen(change.To)
	return &next, nil
}

func stateConflict(order *models.Order) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "действие недоступно: заказ #%d в статусе %s", order.ID, order.DetailedStatus)
}

var (
	errForbidden  = pkgerrors.New(pkgerrors.CodeForbidden, "forbidden")
	errValidation = pkgerrors.New(pkgerrors.CodeValidation, "invalid")
)

func (s *service) observe(operation string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveTransition(operation, outcomeOf(err))
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeApplied
	}
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeForbidden, pkgerrors.CodeStateConflict, pkgerrors.CodeValidation,
		pkgerrors.CodeNotFound, pkgerrors.CodeConflict:
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeFailed
}

func (s *service) notify(ctx context.Context, event Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"order_id": event.Order.ID,
			"event":    string(event.Kind),
			"error":    err.Error(),
		}), "order notification failed")
	}
}

func wrapList(orders []models.Order, err error) ([]models.Order, error) {
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}
