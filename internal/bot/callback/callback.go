// Package callback encodes and decodes inline button payloads.
package callback

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/courierbot-backend/pkg/enums"
)

// Action identifies what a button does.
type Action string

// Menu actions carry no arguments.
const (
	ActionStart             Action = "start"
	ActionClientMenu        Action = "client_menu"
	ActionNewOrder          Action = "new_order"
	ActionMyOrders          Action = "my_orders"
	ActionOrderHistory      Action = "order_history"
	ActionMySubscription    Action = "my_subscription"
	ActionBuySubscription   Action = "buy_subscription"
	ActionBecomeCourier     Action = "become_courier"
	ActionCourierMenu       Action = "courier_menu"
	ActionAvailableOrders   Action = "available_orders"
	ActionCourierActive     Action = "courier_active"
	ActionCourierHistory    Action = "courier_history"
	ActionCourierStats      Action = "courier_stats"
	ActionCourierWithdraw   Action = "courier_withdraw"
	ActionOperatorMenu      Action = "operator_menu"
	ActionOperatorOrders    Action = "operator_orders"
	ActionOperatorChats     Action = "operator_chats"
	ActionOperatorStats     Action = "operator_stats"
	ActionSearchChat        Action = "search_chat"
	ActionAdminMenu         Action = "admin_menu"
	ActionAdminStats        Action = "admin_stats"
	ActionAdminOrders       Action = "admin_orders"
	ActionAdminApplications Action = "admin_applications"
	ActionAdminSubs         Action = "admin_subscriptions"
	ActionAdminOperators    Action = "admin_operators"
	ActionAdminCouriers     Action = "admin_couriers"
	ActionHelp              Action = "help"
	ActionCustomBags        Action = "custom_bags"
	ActionCloseChat         Action = "close_chat"
)

// Actions with arguments, matched by prefix.
const (
	ActionAcceptOrder    Action = "accept_order_"
	ActionStartWork      Action = "start_work_"
	ActionCompleteOrder  Action = "complete_order_"
	ActionCancelOrder    Action = "cancel_order_"
	ActionSelectBags     Action = "select_bags_"
	ActionClientChat     Action = "client_chat_"
	ActionCourierChat    Action = "courier_chat_"
	ActionViewChat       Action = "view_chat_"
	ActionSetStatus      Action = "set_status_"
	ActionOperatorStatus Action = "operator_status_"
	ActionApproveCourier Action = "approve_courier_"
	ActionRejectCourier  Action = "reject_courier_"
	ActionCancelSub      Action = "cancel_sub_"
	ActionRate           Action = "rate_"
	ActionPayOrder       Action = "pay_order_"
)

var menuActions = map[Action]bool{
	ActionStart: true, ActionClientMenu: true, ActionNewOrder: true, ActionMyOrders: true,
	ActionOrderHistory: true, ActionMySubscription: true, ActionBuySubscription: true,
	ActionBecomeCourier: true, ActionCourierMenu: true, ActionAvailableOrders: true,
	ActionCourierActive: true, ActionCourierHistory: true, ActionCourierStats: true,
	ActionCourierWithdraw: true, ActionOperatorMenu: true, ActionOperatorOrders: true,
	ActionOperatorChats: true, ActionOperatorStats: true, ActionSearchChat: true,
	ActionAdminMenu: true, ActionAdminStats: true, ActionAdminOrders: true,
	ActionAdminApplications: true, ActionAdminSubs: true,
	ActionAdminOperators: true, ActionAdminCouriers: true, ActionHelp: true,
	ActionCustomBags: true, ActionCloseChat: true,
}

var orderActions = []Action{
	ActionAcceptOrder, ActionStartWork, ActionCompleteOrder, ActionCancelOrder,
	ActionClientChat, ActionCourierChat, ActionViewChat, ActionOperatorStatus, ActionPayOrder,
}

// Data is a decoded button payload.
type Data struct {
	Action  Action
	OrderID int64
	UserID  int64
	Number  int
	Status  enums.OrderDetailedStatus
	SubID   uuid.UUID
}

// Parse decodes raw callback data. Unknown or malformed payloads are errors.
func Parse(raw string) (Data, error) {
	action := Action(raw)
	if menuActions[action] {
		return Data{Action: action}, nil
	}

	for _, prefix := range orderActions {
		if rest, ok := strings.CutPrefix(raw, string(prefix)); ok {
			id, err := parseID(rest)
			if err != nil {
				return Data{}, fmt.Errorf("callback %q: %w", raw, err)
			}
			return Data{Action: prefix, OrderID: id}, nil
		}
	}

	switch {
	case strings.HasPrefix(raw, string(ActionSelectBags)):
		n, err := strconv.Atoi(strings.TrimPrefix(raw, string(ActionSelectBags)))
		if err != nil || n <= 0 {
			return Data{}, fmt.Errorf("callback %q: invalid bag count", raw)
		}
		return Data{Action: ActionSelectBags, Number: n}, nil

	case strings.HasPrefix(raw, string(ActionSetStatus)):
		idPart, statusPart, ok := strings.Cut(strings.TrimPrefix(raw, string(ActionSetStatus)), "_")
		if !ok {
			return Data{}, fmt.Errorf("callback %q: missing status", raw)
		}
		id, err := parseID(idPart)
		if err != nil {
			return Data{}, fmt.Errorf("callback %q: %w", raw, err)
		}
		status, err := enums.ParseOrderDetailedStatus(statusPart)
		if err != nil {
			return Data{}, fmt.Errorf("callback %q: %w", raw, err)
		}
		return Data{Action: ActionSetStatus, OrderID: id, Status: status}, nil

	case strings.HasPrefix(raw, string(ActionApproveCourier)), strings.HasPrefix(raw, string(ActionRejectCourier)):
		prefix := ActionApproveCourier
		if strings.HasPrefix(raw, string(ActionRejectCourier)) {
			prefix = ActionRejectCourier
		}
		id, err := parseID(strings.TrimPrefix(raw, string(prefix)))
		if err != nil {
			return Data{}, fmt.Errorf("callback %q: %w", raw, err)
		}
		return Data{Action: prefix, UserID: id}, nil

	case strings.HasPrefix(raw, string(ActionCancelSub)):
		id, err := uuid.Parse(strings.TrimPrefix(raw, string(ActionCancelSub)))
		if err != nil {
			return Data{}, fmt.Errorf("callback %q: %w", raw, err)
		}
		return Data{Action: ActionCancelSub, SubID: id}, nil

	case strings.HasPrefix(raw, string(ActionRate)):
		idPart, starsPart, ok := strings.Cut(strings.TrimPrefix(raw, string(ActionRate)), "_")
		if !ok {
			return Data{}, fmt.Errorf("callback %q: missing rating", raw)
		}
		id, err := parseID(idPart)
		if err != nil {
			return Data{}, fmt.Errorf("callback %q: %w", raw, err)
		}
		stars, err := strconv.Atoi(starsPart)
		if err != nil {
			return Data{}, fmt.Errorf("callback %q: invalid rating", raw)
		}
		return Data{Action: ActionRate, OrderID: id, Number: stars}, nil
	}

	return Data{}, fmt.Errorf("unknown callback %q", raw)
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}

// Order builds "<prefix><orderID>".
func Order(action Action, orderID int64) string {
	return fmt.Sprintf("%s%d", action, orderID)
}

// User builds "<prefix><telegramID>".
func User(action Action, telegramID int64) string {
	return fmt.Sprintf("%s%d", action, telegramID)
}

func SelectBags(n int) string {
	return fmt.Sprintf("%s%d", ActionSelectBags, n)
}

func SetStatus(orderID int64, status enums.OrderDetailedStatus) string {
	return fmt.Sprintf("%s%d_%s", ActionSetStatus, orderID, status)
}

func Rate(orderID int64, stars int) string {
	return fmt.Sprintf("%s%d_%d", ActionRate, orderID, stars)
}

func CancelSub(id uuid.UUID) string {
	return string(ActionCancelSub) + id.String()
}

// Menu returns the payload of an argument-less action.
func Menu(action Action) string {
	return string(action)
}
