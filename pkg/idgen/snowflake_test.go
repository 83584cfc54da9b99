package idgen

import (
	"strings"
	"testing"
)

func TestMain(m *testing.M) {
	Init(1)
	m.Run()
}

func TestNextIDMonotonic(t *testing.T) {
	prev := NextID()
	for i := 0; i < 1000; i++ {
		id := NextID()
		if id <= prev {
			t.Fatalf("id 不递增: prev=%d, got=%d", prev, id)
		}
		prev = id
	}
}

func TestBusinessNoPrefixes(t *testing.T) {
	orderNo := GenerateOrderNo()
	if !strings.HasPrefix(orderNo, "ORD") {
		t.Errorf("订单号前缀错误: %s", orderNo)
	}

	transNo := GenerateTransactionNo()
	if !strings.HasPrefix(transNo, "TXN") {
		t.Errorf("流水号前缀错误: %s", transNo)
	}
}

func TestGenerateDeliveryCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := GenerateDeliveryCode()
		if len(code) != 6 {
			t.Fatalf("收货码必须 6 位: %q", code)
		}
		for _, ch := range code {
			if ch < '0' || ch > '9' {
				t.Fatalf("收货码必须是纯数字: %q", code)
			}
		}
		seen[code] = true
	}
	// 100 次全撞同一个码基本不可能
	if len(seen) < 2 {
		t.Error("收货码没有随机性")
	}
}
