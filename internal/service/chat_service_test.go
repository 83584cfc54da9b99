package service

import (
	"context"
	"testing"
	"time"

	"kirato/internal/infrastructure/broadcast"
	"kirato/internal/model"
	"kirato/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newChatFixture(t *testing.T) (*ChatService, *gorm.DB) {
	db := newTestDB(t)
	svc := NewChatService(db, nil, newTestConfig(), broadcast.NoopBroadcaster{}, NewScriptedResponder())
	return svc, db
}

func TestSendMessage_CreatesConversationAndTracksUnread(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, 2, 1, model.SenderBuyer, "你好，在吗")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)

	conv, err := svc.GetConversation(ctx, model.ConvKey(2, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, conv.UnreadCount)
	assert.Equal(t, "你好，在吗", conv.LastMessageText)

	// 卖家回复清零未读
	_, err = svc.SendMessage(ctx, 2, 1, model.SenderSeller, "在的")
	require.NoError(t, err)

	conv, err = svc.GetConversation(ctx, model.ConvKey(2, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, conv.UnreadCount)
}

func TestSendMessage_RejectsEmptyTextAndBadSender(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, 2, 1, model.SenderBuyer, "")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = svc.SendMessage(ctx, 2, 1, "system", "hello")
	assert.ErrorIs(t, err, ErrInvalidSender)
}

func TestSendMessage_BuyerMessageQueuesAutoReply(t *testing.T) {
	svc, db := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, 2, 1, model.SenderBuyer, "多少钱")
	require.NoError(t, err)

	tasks, err := repository.NewAutoReplyRepository(db).GetDue(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, model.ConvKey(2, 1), tasks[0].ConvKey)
}

func TestSendMessage_SellerAndAIMessagesNeverQueueAutoReply(t *testing.T) {
	svc, db := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, 2, 1, model.SenderSeller, "有什么可以帮您")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, 2, 1, model.SenderAI, "自动回复")
	require.NoError(t, err)

	tasks, err := repository.NewAutoReplyRepository(db).GetDue(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestSendMessage_NoAutoReplyWhenSellerTookOver(t *testing.T) {
	svc, db := newChatFixture(t)
	ctx := context.Background()

	convKey := model.ConvKey(2, 1)
	_, err := svc.SendMessage(ctx, 2, 1, model.SenderSeller, "我来处理")
	require.NoError(t, err)
	require.NoError(t, svc.SetHandoff(ctx, convKey, model.HandoffModeSeller))

	_, err = svc.SendMessage(ctx, 2, 1, model.SenderBuyer, "好的")
	require.NoError(t, err)

	tasks, err := repository.NewAutoReplyRepository(db).GetDue(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestProcessDueAutoReplies_SendsExactlyOnce(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, 2, 1, model.SenderBuyer, "发货了吗")
	require.NoError(t, err)

	due := time.Now().Add(time.Minute)
	sent, err := svc.ProcessDueAutoReplies(ctx, due, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	// 再跑一轮不会重复回复
	sent, err = svc.ProcessDueAutoReplies(ctx, due, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	msgs, total, err := svc.ListMessages(ctx, model.ConvKey(2, 1), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, model.SenderAI, msgs[1].Sender)
}

func TestProcessDueAutoReplies_SkippedAfterHandoff(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, 2, 1, model.SenderBuyer, "在吗")
	require.NoError(t, err)

	// 延迟窗口内卖家接管，任务作废
	require.NoError(t, svc.SetHandoff(ctx, model.ConvKey(2, 1), model.HandoffModeSeller))

	sent, err := svc.ProcessDueAutoReplies(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	_, total, err := svc.ListMessages(ctx, model.ConvKey(2, 1), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestProcessDueAutoReplies_SkippedWhenSellerOnline(t *testing.T) {
	svc, db := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, 2, 1, model.SenderBuyer, "在吗")
	require.NoError(t, err)

	// 未配置 Redis 时以落库镜像列为准
	convRepo := repository.NewConversationRepository(db)
	_, err = convRepo.SetPresenceBySeller(ctx, 2, model.PresenceOnline)
	require.NoError(t, err)

	sent, err := svc.ProcessDueAutoReplies(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestSetHandoff_RejectsUnknownMode(t *testing.T) {
	svc, _ := newChatFixture(t)

	err := svc.SetHandoff(context.Background(), model.ConvKey(2, 1), "human")
	assert.ErrorIs(t, err, ErrInvalidHandoff)
}

func TestListMessages_ChronologicalOrder(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()

	for _, text := range []string{"第一条", "第二条", "第三条"} {
		_, err := svc.SendMessage(ctx, 2, 1, model.SenderSeller, text)
		require.NoError(t, err)
	}

	msgs, total, err := svc.ListMessages(ctx, model.ConvKey(2, 1), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "第一条", msgs[0].Text)
	assert.Equal(t, "第三条", msgs[2].Text)
}
