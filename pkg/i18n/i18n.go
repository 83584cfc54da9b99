package i18n

import (
	"embed"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ============================================================================
// 多语言文案解析
// ============================================================================
//
// 文案按语言放在 locales/*.yaml 里，key 用点号分层（如 wallet.insufficient）。
// 解析顺序：请求语言 -> 兜底语言 -> 直接返回 key 本身（漏配也不报错）
//
// ============================================================================

//go:embed locales/*.yaml
var localeFS embed.FS

// Bundle 一组已加载的语言包
type Bundle struct {
	mu            sync.RWMutex
	defaultLocale string
	messages      map[string]map[string]string // locale -> 扁平化 key -> 文案
}

// NewBundle 加载内嵌语言包
func NewBundle(defaultLocale string) *Bundle {
	b := &Bundle{
		defaultLocale: defaultLocale,
		messages:      make(map[string]map[string]string),
	}

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		logrus.Fatalf("读取语言包目录失败: %v", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") {
			continue
		}
		locale := strings.TrimSuffix(name, ".yaml")

		raw, err := localeFS.ReadFile("locales/" + name)
		if err != nil {
			logrus.Fatalf("读取语言包失败: %s: %v", name, err)
		}

		var nested map[string]interface{}
		if err := yaml.Unmarshal(raw, &nested); err != nil {
			logrus.Fatalf("解析语言包失败: %s: %v", name, err)
		}

		flat := make(map[string]string)
		flatten("", nested, flat)
		b.messages[locale] = flat
	}

	return b
}

// flatten 把嵌套 map 压成点号分层的扁平 key
func flatten(prefix string, nested map[string]interface{}, out map[string]string) {
	for k, v := range nested {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]interface{}:
			flatten(key, val, out)
		}
	}
}

// Resolve 按（语言, 点号key）取文案
// 请求语言缺失时退到兜底语言，仍缺失时返回 key 本身
func (b *Bundle) Resolve(locale, key string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if msgs, ok := b.messages[locale]; ok {
		if text, ok := msgs[key]; ok {
			return text
		}
	}
	if msgs, ok := b.messages[b.defaultLocale]; ok {
		if text, ok := msgs[key]; ok {
			return text
		}
	}
	return key
}

// Locales 已加载的语言列表
func (b *Bundle) Locales() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	locales := make([]string, 0, len(b.messages))
	for locale := range b.messages {
		locales = append(locales, locale)
	}
	return locales
}
