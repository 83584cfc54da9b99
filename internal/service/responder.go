package service

import (
	"fmt"
	"strings"

	"kirato/internal/model"
)

// Responder 自动回复生成器
// 目前只有脚本实现；接入真实大模型时替换这里即可，会话状态机不用动
type Responder interface {
	GenerateReply(conv *model.Conversation, lastText string) string
}

// ScriptedResponder 脚本固定话术
// 按买家消息里的关键词挑一条，兜底用通用话术
type ScriptedResponder struct{}

func NewScriptedResponder() *ScriptedResponder {
	return &ScriptedResponder{}
}

func (ScriptedResponder) GenerateReply(conv *model.Conversation, lastText string) string {
	text := strings.ToLower(lastText)

	switch {
	case strings.Contains(text, "发货") || strings.Contains(text, "物流") ||
		strings.Contains(text, "ship") || strings.Contains(text, "delivery"):
		return "您好，我是店铺智能助理。订单发货后可以在订单详情页查看物流信息，卖家上线后会第一时间跟进～"
	case strings.Contains(text, "退款") || strings.Contains(text, "refund"):
		return "您好，我是店铺智能助理。退款问题需要卖家确认，已为您登记，卖家上线后会尽快处理。"
	case strings.Contains(text, "价格") || strings.Contains(text, "优惠") ||
		strings.Contains(text, "price"):
		return "您好，我是店铺智能助理。商品价格以详情页为准，活动优惠请关注店铺公告哦～"
	}

	return fmt.Sprintf("您好，我是店铺智能助理。卖家当前不在线，已收到您的消息「%s」，卖家上线后会尽快回复您。", truncate(lastText, 50))
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
