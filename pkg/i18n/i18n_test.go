package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	b := NewBundle("en")

	assert.Equal(t, "Order not found", b.Resolve("en", "order.not_found"))
	assert.Equal(t, "订单不存在", b.Resolve("zh", "order.not_found"))
}

func TestResolve_FallsBackToDefaultLocale(t *testing.T) {
	b := NewBundle("en")

	// 不支持的语言回退到默认语言
	assert.Equal(t, "Order not found", b.Resolve("fr", "order.not_found"))
	assert.Equal(t, "Order not found", b.Resolve("", "order.not_found"))
}

func TestResolve_UnknownKeyReturnsKey(t *testing.T) {
	b := NewBundle("en")

	assert.Equal(t, "order.nonexistent", b.Resolve("en", "order.nonexistent"))
}

func TestLocales(t *testing.T) {
	b := NewBundle("en")
	assert.Contains(t, b.Locales(), "en")
	assert.Contains(t, b.Locales(), "zh")
}
