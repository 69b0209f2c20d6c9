package notifications

import (
	"fmt"
	"html"

	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
)

var statusLabels = map[enums.OrderDetailedStatus]string{
	enums.OrderDetailedWaitingPayment:   "⏳ Ожидает оплаты",
	enums.OrderDetailedSearchingCourier: "🔍 Поиск курьера",
	enums.OrderDetailedCourierOnWay:     "🚚 Курьер в пути",
	enums.OrderDetailedCourierWorking:   "🧹 Курьер на месте",
	enums.OrderDetailedCompleted:        "✅ Выполнен",
	enums.OrderDetailedCancelled:        "❌ Отменён",
}

// StatusLabel renders a detailed status for humans.
func StatusLabel(status enums.OrderDetailedStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}

// OrderCard is the common multi-line order summary.
func OrderCard(order models.Order) string {
	price := fmt.Sprintf("%d ₽", order.Price)
	if order.IsSubscriptionOrder {
		price = "по подписке"
	}
	return fmt.Sprintf("<b>Заказ #%d</b>\n📍 %s\n🛍 Пакетов: %d\n💰 %s\n📋 %s",
		order.ID, html.EscapeString(order.Address), order.BagCount, price, StatusLabel(order.DetailedStatus))
}

func senderLabel(kind string) string {
	switch kind {
	case "client":
		return "👤 Клиент"
	case "courier":
		return "🚚 Курьер"
	}
	return "🎧 Оператор"
}
