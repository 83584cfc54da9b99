package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvKeyFormat(t *testing.T) {
	assert.Equal(t, "seller:2|buyer:1", ConvKey(2, 1))
}

func TestShouldAutoReply(t *testing.T) {
	base := Conversation{
		HandoffMode:    HandoffModeAI,
		SellerPresence: PresenceOffline,
		AIEnabled:      true,
	}

	assert.True(t, base.ShouldAutoReply(SenderBuyer))

	// 卖家和 AI 自己的消息绝不触发
	assert.False(t, base.ShouldAutoReply(SenderSeller))
	assert.False(t, base.ShouldAutoReply(SenderAI))

	takenOver := base
	takenOver.HandoffMode = HandoffModeSeller
	assert.False(t, takenOver.ShouldAutoReply(SenderBuyer))

	online := base
	online.SellerPresence = PresenceOnline
	assert.False(t, online.ShouldAutoReply(SenderBuyer))

	disabled := base
	disabled.AIEnabled = false
	assert.False(t, disabled.ShouldAutoReply(SenderBuyer))
}
