package callback

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/courierbot-backend/pkg/enums"
)

func TestRoundTripBuilders(t *testing.T) {
	sub := uuid.MustParse("6f1c2d3e-4b5a-4c7d-8e9f-0a1b2c3d4e5f")
	cases := []struct {
		raw  string
		want Data
	}{
		{Order(ActionAcceptOrder, 12), Data{Action: ActionAcceptOrder, OrderID: 12}},
		{Order(ActionStartWork, 12), Data{Action: ActionStartWork, OrderID: 12}},
		{Order(ActionCompleteOrder, 3), Data{Action: ActionCompleteOrder, OrderID: 3}},
		{Order(ActionCancelOrder, 3), Data{Action: ActionCancelOrder, OrderID: 3}},
		{Order(ActionClientChat, 8), Data{Action: ActionClientChat, OrderID: 8}},
		{Order(ActionCourierChat, 8), Data{Action: ActionCourierChat, OrderID: 8}},
		{Order(ActionViewChat, 8), Data{Action: ActionViewChat, OrderID: 8}},
		{Order(ActionOperatorStatus, 8), Data{Action: ActionOperatorStatus, OrderID: 8}},
		{Order(ActionPayOrder, 8), Data{Action: ActionPayOrder, OrderID: 8}},
		{SelectBags(4), Data{Action: ActionSelectBags, Number: 4}},
		{SetStatus(5, enums.OrderDetailedSearchingCourier), Data{Action: ActionSetStatus, OrderID: 5, Status: enums.OrderDetailedSearchingCourier}},
		{User(ActionApproveCourier, 777), Data{Action: ActionApproveCourier, UserID: 777}},
		{User(ActionRejectCourier, 777), Data{Action: ActionRejectCourier, UserID: 777}},
		{CancelSub(sub), Data{Action: ActionCancelSub, SubID: sub}},
		{Rate(9, 5), Data{Action: ActionRate, OrderID: 9, Number: 5}},
		{Menu(ActionStart), Data{Action: ActionStart}},
		{Menu(ActionCourierMenu), Data{Action: ActionCourierMenu}},
		{Menu(ActionCustomBags), Data{Action: ActionCustomBags}},
		{Menu(ActionOperatorChats), Data{Action: ActionOperatorChats}},
		{Menu(ActionCourierWithdraw), Data{Action: ActionCourierWithdraw}},
		{Menu(ActionAdminOrders), Data{Action: ActionAdminOrders}},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := Parse(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.LessOrEqual(t, len(tc.raw), 64)
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"", "unknown", "accept_order_", "accept_order_x", "accept_order_-1",
		"select_bags_0", "set_status_5", "set_status_5_lost", "rate_9", "rate_9_x",
		"cancel_sub_not-a-uuid", "approve_courier_abc",
	} {
		_, err := Parse(raw)
		assert.Error(t, err, raw)
	}
}
