package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{OrderStatusPending, OrderStatusShipped, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusDelivered, false},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusShipped, OrderStatusDisputed, true},
		{OrderStatusDisputed, OrderStatusRefunded, true},
		{OrderStatusDisputed, OrderStatusDelivered, false},
		// 终态不允许任何迁移
		{OrderStatusDelivered, OrderStatusDisputed, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusRefunded, OrderStatusDisputed, false},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, CanTransitionTo(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestDisputeReachableFromAllActiveStates(t *testing.T) {
	for _, from := range []string{OrderStatusPending, OrderStatusProcessing, OrderStatusShipped} {
		assert.True(t, CanTransitionTo(from, OrderStatusDisputed), "from %s", from)
	}
}

func TestIsTerminal(t *testing.T) {
	for status, terminal := range map[string]bool{
		OrderStatusPending:    false,
		OrderStatusProcessing: false,
		OrderStatusShipped:    false,
		OrderStatusDisputed:   false,
		OrderStatusDelivered:  true,
		OrderStatusCancelled:  true,
		OrderStatusRefunded:   true,
	} {
		o := Order{Status: status}
		assert.Equal(t, terminal, o.IsTerminal(), status)
	}
}

func TestParseItems(t *testing.T) {
	o := Order{Items: `[{"product_id":"p1","title":"手办","price":30,"quantity":2}]`}
	items, err := o.ParseItems()
	assert.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int64(30), items[0].Price)
	assert.Equal(t, 2, items[0].Quantity)

	empty := Order{}
	items, err = empty.ParseItems()
	assert.NoError(t, err)
	assert.Empty(t, items)
}
