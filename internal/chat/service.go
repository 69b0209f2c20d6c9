// Package chat routes free-text messages between the parties of an order.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/courierbot-backend/pkg/errors"
)

const (
	defaultMaxLength   = 4000
	historyLimit       = 50
	recentHistoryLimit = 20
	defaultRetention   = 7 * 24 * time.Hour
)

// commandPrefixes mark text that is never routed into a chat.
var commandPrefixes = []string{"/", "operator_", "courier_", "chat_", "sub_"}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OrderReader loads the order a chat belongs to.
type OrderReader interface {
	FindByID(ctx context.Context, id int64) (*models.Order, error)
}

// SenderKind is how a message author relates to the order.
type SenderKind string

const (
	SenderClient  SenderKind = "client"
	SenderCourier SenderKind = "courier"
	SenderStaff   SenderKind = "staff"
)

// Delivery is a persisted message plus who must receive it.
type Delivery struct {
	Message    models.ChatMessage
	Order      models.Order
	Sender     SenderKind
	Recipients []Recipient
}

// Recipient is one fan-out target and the kind of party it is.
type Recipient struct {
	TelegramID int64
	Kind       SenderKind
}

// RouteResult describes what happened to a free-text message.
type RouteResult struct {
	Routed         bool
	SessionDropped bool
	Delivery       *Delivery
}

// Entry is one line of chat history from either table.
type Entry struct {
	SenderID  int64
	Message   string
	CreatedAt time.Time
	Archived  bool
}

type Service interface {
	Open(ctx context.Context, actor int64, role enums.Role, orderID int64) (*models.Order, error)
	Close(ctx context.Context, actor int64) error
	Send(ctx context.Context, actor int64, role enums.Role, orderID int64, text string) (*Delivery, error)
	RouteFreeText(ctx context.Context, actor int64, role enums.Role, text string) (RouteResult, error)
	History(ctx context.Context, orderID int64) ([]Entry, error)
	Recent(ctx context.Context, orderID int64) ([]Entry, error)
	CountLive(ctx context.Context, orderID int64) (int64, error)
	ArchiveStale(ctx context.Context, cutoff time.Time) (int64, error)
	ClearForOrder(ctx context.Context, tx *gorm.DB, orderID int64, actors ...int64) error
	Retention() time.Duration
}

type ServiceParams struct {
	Repo      Repository
	Orders    OrderReader
	Tx        txRunner
	MaxLength int
	Retention time.Duration
	Now       func() time.Time
}

type service struct {
	repo      Repository
	orders    OrderReader
	tx        txRunner
	maxLength int
	retention time.Duration
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("chat repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	maxLength := params.MaxLength
	if maxLength <= 0 {
		maxLength = defaultMaxLength
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repo,
		orders:    params.Orders,
		tx:        params.Tx,
		maxLength: maxLength,
		retention: retention,
		now:       now,
	}, nil
}

// IsCommand reports whether text is reserved for command handling.
func IsCommand(text string) bool {
	for _, prefix := range commandPrefixes {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}

// kindOf classifies actor relative to the order; ok is false for outsiders.
func kindOf(order *models.Order, actor int64, role enums.Role) (SenderKind, bool) {
	switch {
	case role.IsStaff():
		return SenderStaff, true
	case order.ClientID == actor:
		return SenderClient, true
	case order.IsBoundCourier(actor):
		return SenderCourier, true
	}
	return "", false
}

func (s *service) loadOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "заказ #%d не найден", orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) Open(ctx context.Context, actor int64, role enums.Role, orderID int64) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if _, ok := kindOf(order, actor, role); !ok {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "у вас нет доступа к этому чату")
	}
	if order.DetailedStatus.IsTerminal() {
		if !role.IsStaff() {
			return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "заказ #%d уже закрыт", orderID)
		}
		// staff may read a closed chat, but no session is kept for it
		if err := s.Close(ctx, actor); err != nil {
			return nil, err
		}
		return order, nil
	}
	if err := s.repo.UpsertSession(ctx, actor, orderID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open chat session")
	}
	return order, nil
}

func (s *service) Close(ctx context.Context, actor int64) error {
	if err := s.repo.DeleteSession(ctx, actor); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close chat session")
	}
	return nil
}

func (s *service) validateText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "сообщение не может быть пустым")
	}
	if utf8.RuneCountInString(trimmed) > s.maxLength {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "сообщение слишком длинное (максимум %d символов)", s.maxLength)
	}
	return trimmed, nil
}

// Send persists the message and computes the fan-out: staff reach both parties,
// each party reaches the other.
func (s *service) Send(ctx context.Context, actor int64, role enums.Role, orderID int64, text string) (*Delivery, error) {
	body, err := s.validateText(text)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.DetailedStatus.IsTerminal() {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "заказ #%d уже закрыт", orderID)
	}
	return s.deliver(ctx, order, actor, role, body)
}

func (s *service) deliver(ctx context.Context, order *models.Order, actor int64, role enums.Role, body string) (*Delivery, error) {
	kind, ok := kindOf(order, actor, role)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "у вас нет доступа к этому чату")
	}

	msg := models.ChatMessage{OrderID: order.ID, SenderID: actor, Message: body}
	if err := s.repo.CreateMessage(ctx, &msg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save chat message")
	}

	return &Delivery{
		Message:    msg,
		Order:      *order,
		Sender:     kind,
		Recipients: recipientsFor(order, actor, kind),
	}, nil
}

func recipientsFor(order *models.Order, actor int64, kind SenderKind) []Recipient {
	var out []Recipient
	add := func(id int64, k SenderKind) {
		if id != 0 && id != actor {
			out = append(out, Recipient{TelegramID: id, Kind: k})
		}
	}
	courierID := int64(0)
	if order.CourierID != nil {
		courierID = *order.CourierID
	}
	switch kind {
	case SenderStaff:
		add(order.ClientID, SenderClient)
		add(courierID, SenderCourier)
	case SenderClient:
		add(courierID, SenderCourier)
	case SenderCourier:
		add(order.ClientID, SenderClient)
	}
	return out
}

// RouteFreeText delivers non-command text into the actor's open chat. Without
// a session, or for non-members, nothing is persisted.
func (s *service) RouteFreeText(ctx context.Context, actor int64, role enums.Role, text string) (RouteResult, error) {
	if IsCommand(text) {
		return RouteResult{}, nil
	}
	session, err := s.repo.FindSession(ctx, actor)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RouteResult{}, nil
		}
		return RouteResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load chat session")
	}

	order, err := s.orders.FindByID(ctx, session.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RouteResult{SessionDropped: true}, s.Close(ctx, actor)
		}
		return RouteResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.DetailedStatus.IsTerminal() {
		return RouteResult{SessionDropped: true}, s.Close(ctx, actor)
	}
	if _, ok := kindOf(order, actor, role); !ok {
		return RouteResult{}, nil
	}

	body, err := s.validateText(text)
	if err != nil {
		return RouteResult{}, err
	}
	delivery, err := s.deliver(ctx, order, actor, role, body)
	if err != nil {
		return RouteResult{}, err
	}
	return RouteResult{Routed: true, Delivery: delivery}, nil
}

// History merges archived and live messages, archive first, both chronological.
func (s *service) History(ctx context.Context, orderID int64) ([]Entry, error) {
	archived, err := s.repo.ListArchived(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load chat archive")
	}
	live, err := s.repo.ListMessages(ctx, orderID, historyLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load chat messages")
	}
	entries := make([]Entry, 0, len(archived)+len(live))
	for _, m := range archived {
		entries = append(entries, Entry{SenderID: m.SenderID, Message: m.Message, CreatedAt: m.CreatedAt, Archived: true})
	}
	for _, m := range live {
		entries = append(entries, Entry{SenderID: m.SenderID, Message: m.Message, CreatedAt: m.CreatedAt})
	}
	return entries, nil
}

// Recent returns the last messages shown when a party opens the chat.
func (s *service) Recent(ctx context.Context, orderID int64) ([]Entry, error) {
	msgs, err := s.repo.RecentMessages(ctx, orderID, recentHistoryLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recent chat messages")
	}
	entries := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, Entry{SenderID: m.SenderID, Message: m.Message, CreatedAt: m.CreatedAt, Archived: m.IsArchived})
	}
	return entries, nil
}

func (s *service) CountLive(ctx context.Context, orderID int64) (int64, error) {
	count, err := s.repo.CountLive(ctx, orderID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count chat messages")
	}
	return count, nil
}

func (s *service) ArchiveStale(ctx context.Context, cutoff time.Time) (int64, error) {
	var archived int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.repo.WithTx(tx).ArchiveClosedBefore(ctx, cutoff, s.now().UTC())
		archived = n
		return err
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive stale chats")
	}
	return archived, nil
}

// ClearForOrder drops session pointers into orderID inside the caller's tx.
func (s *service) ClearForOrder(ctx context.Context, tx *gorm.DB, orderID int64, actors ...int64) error {
	if _, err := s.repo.WithTx(tx).DeleteSessionsForOrder(ctx, orderID, actors...); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear chat sessions")
	}
	return nil
}

func (s *service) Retention() time.Duration {
	return s.retention
}
