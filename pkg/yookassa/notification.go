package yookassa

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// EventPaymentSucceeded is the only notification that moves an order forward.
const EventPaymentSucceeded = "payment.succeeded"

// Notification is the webhook body YooKassa posts on payment events.
type Notification struct {
	Type   string             `json:"type"`
	Event  string             `json:"event" validate:"required"`
	Object NotificationObject `json:"object"`
}

type NotificationObject struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Paid     bool     `json:"paid"`
	Metadata Metadata `json:"metadata"`
}

type Metadata struct {
	OrderID OrderRef `json:"order_id"`
}

// OrderRef accepts the order id as either a JSON string or number.
type OrderRef int64

func (r *OrderRef) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*r = 0
		return nil
	}
	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
	} else {
		text = string(raw)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		*r = 0
		return nil
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return err
	}
	*r = OrderRef(id)
	return nil
}

// IsSucceeded reports whether the event confirms a captured payment.
func (n Notification) IsSucceeded() bool {
	return n.Event == EventPaymentSucceeded
}
