package models

// All lists every persisted model in dependency order.
func All() []any {
	return []any{
		&User{},
		&AdminUser{},
		&OperatorUser{},
		&Order{},
		&CourierStats{},
		&Rating{},
		&Subscription{},
		&CourierApplication{},
		&ChatSession{},
		&ChatMessage{},
		&ChatArchiveMessage{},
		&OrderDraft{},
	}
}
