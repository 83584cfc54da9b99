package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"kirato/internal/config"
	"kirato/internal/model"
	"kirato/internal/repository"
	"kirato/pkg/idgen"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrInvalidAmount = errors.New("金额必须大于0")

// WalletService 积分钱包服务
//
// 【重要】余额的所有变动必须经过本服务：每次变动在同一个事务里
// 更新钱包快照、追加流水、裁剪流水、写 outbox 事件，
// 保证任意时刻 Balance = 初始余额 + SUM(现存流水裁剪前的金额)
type WalletService struct {
	db              *gorm.DB
	cfg             *config.Config
	walletRepo      *repository.WalletRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewWalletService(db *gorm.DB, cfg *config.Config) *WalletService {
	return &WalletService{
		db:              db,
		cfg:             cfg,
		walletRepo:      repository.NewWalletRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

// GetOrCreateWallet 获取钱包，首次访问时创建并发放一次性欢迎积分
func (s *WalletService) GetOrCreateWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	wallet, created, err := s.walletRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取钱包失败: %w", err)
	}

	if created && s.cfg.Business.WelcomeBonus > 0 {
		if err := s.Grant(ctx, userID, s.cfg.Business.WelcomeBonus, model.ReasonWelcomeBonus, nil); err != nil {
			return nil, fmt.Errorf("发放欢迎积分失败: %w", err)
		}
		wallet, err = s.walletRepo.GetByUserID(ctx, nil, userID)
		if err != nil {
			return nil, err
		}
		logrus.Infof("新钱包已创建并发放欢迎积分: userID=%d, bonus=%d", userID, s.cfg.Business.WelcomeBonus)
	}

	return wallet, nil
}

func (s *WalletService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return wallet.Balance, nil
}

// Grant 发放积分，总是成功（amount 非法除外）
func (s *WalletService) Grant(ctx context.Context, userID int64, amount int64, reason string, metadata map[string]string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.GrantTx(ctx, tx, userID, amount, reason, metadata)
	})
}

// GrantTx 事务内发放积分，供订阅/订单服务把发放并进自己的事务
func (s *WalletService) GrantTx(ctx context.Context, tx *gorm.DB, userID int64, amount int64, reason string, metadata map[string]string) error {
	return s.creditTx(ctx, tx, userID, amount, model.TransactionTypeGrant, reason, metadata)
}

// Refund 退还积分
func (s *WalletService) Refund(ctx context.Context, userID int64, amount int64, reason string, metadata map[string]string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.RefundTx(ctx, tx, userID, amount, reason, metadata)
	})
}

// RefundTx 事务内退还积分，与发放走同一条路径，流水类型不同
func (s *WalletService) RefundTx(ctx context.Context, tx *gorm.DB, userID int64, amount int64, reason string, metadata map[string]string) error {
	return s.creditTx(ctx, tx, userID, amount, model.TransactionTypeRefund, reason, metadata)
}

func (s *WalletService) creditTx(ctx context.Context, tx *gorm.DB, userID int64, amount int64, transType, reason string, metadata map[string]string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	wallet, err := s.walletRepo.GetByUserID(ctx, tx, userID)
	if err != nil {
		return fmt.Errorf("查询钱包失败: %w", err)
	}

	if err := s.walletRepo.Increase(ctx, tx, userID, amount); err != nil {
		return fmt.Errorf("入账失败: %w", err)
	}

	trans := &model.CreditTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserID:        userID,
		Type:          transType,
		Amount:        amount,
		Reason:        reason,
		Metadata:      encodeMetadata(metadata),
		BalanceBefore: wallet.Balance,
		BalanceAfter:  wallet.Balance + amount,
	}
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		return fmt.Errorf("记录流水失败: %w", err)
	}

	if err := s.transactionRepo.TrimToCap(ctx, tx, userID, s.cfg.Business.LedgerCap); err != nil {
		return fmt.Errorf("裁剪流水失败: %w", err)
	}

	return s.appendCreditEvent(ctx, tx, model.EventCreditGranted, trans)
}

// SpendResult 消费结果
// 积分不足不是错误：OK=false + 当前余额，由调用方决定如何引导用户
type SpendResult struct {
	OK      bool  `json:"ok"`
	Balance int64 `json:"balance"`
}

// Spend 消费积分
// 【关键点】余额检查与扣减压在一条条件更新里（见 WalletRepository.Deduct），
// 余额永不为负；余额不足时不产生任何变更
func (s *WalletService) Spend(ctx context.Context, userID int64, amount int64, reason string, metadata map[string]string) (*SpendResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	if wallet.Balance < amount {
		return &SpendResult{OK: false, Balance: wallet.Balance}, nil
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.walletRepo.Deduct(ctx, tx, userID, amount, wallet.Version); err != nil {
			return err
		}

		trans := &model.CreditTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        userID,
			Type:          model.TransactionTypeSpend,
			Amount:        -amount,
			Reason:        reason,
			Metadata:      encodeMetadata(metadata),
			BalanceBefore: wallet.Balance,
			BalanceAfter:  wallet.Balance - amount,
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		if err := s.transactionRepo.TrimToCap(ctx, tx, userID, s.cfg.Business.LedgerCap); err != nil {
			return fmt.Errorf("裁剪流水失败: %w", err)
		}

		return s.appendCreditEvent(ctx, tx, model.EventCreditSpent, trans)
	})

	if err != nil {
		if errors.Is(err, repository.ErrBalanceNotEnough) {
			// 检查与扣减之间被其他请求抢扣，按不足处理
			balance, _ := s.GetBalance(ctx, userID)
			return &SpendResult{OK: false, Balance: balance}, nil
		}
		return nil, err
	}

	return &SpendResult{OK: true, Balance: wallet.Balance - amount}, nil
}

// Adjust 人工调账（运营后台用），delta 带符号
// 负向调账同样受"余额不为负"约束
func (s *WalletService) Adjust(ctx context.Context, userID int64, delta int64, reason string) error {
	if delta == 0 {
		return ErrInvalidAmount
	}

	wallet, err := s.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if delta > 0 {
			if err := s.walletRepo.Increase(ctx, tx, userID, delta); err != nil {
				return err
			}
		} else {
			if err := s.walletRepo.Deduct(ctx, tx, userID, -delta, wallet.Version); err != nil {
				return err
			}
		}

		trans := &model.CreditTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        userID,
			Type:          model.TransactionTypeAdjustment,
			Amount:        delta,
			Reason:        reason,
			BalanceBefore: wallet.Balance,
			BalanceAfter:  wallet.Balance + delta,
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		return s.transactionRepo.TrimToCap(ctx, tx, userID, s.cfg.Business.LedgerCap)
	})
}

// ListLedger 流水列表，最新的排前面
func (s *WalletService) ListLedger(ctx context.Context, userID int64, page, pageSize int) ([]*model.CreditTransaction, int64, error) {
	return s.transactionRepo.ListByUserID(ctx, userID, page, pageSize)
}

func (s *WalletService) appendCreditEvent(ctx context.Context, tx *gorm.DB, event string, trans *model.CreditTransaction) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"event":          event,
		"transaction_no": trans.TransactionNo,
		"user_id":        trans.UserID,
		"amount":         trans.Amount,
		"reason":         trans.Reason,
		"balance_after":  trans.BalanceAfter,
	})

	outboxMsg := &model.OutboxMessage{
		MessageKey: trans.TransactionNo,
		Topic:      s.cfg.Kafka.Topic.CreditEvents,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}

func encodeMetadata(metadata map[string]string) string {
	if len(metadata) == 0 {
		return ""
	}
	raw, _ := json.Marshal(metadata)
	return string(raw)
}
