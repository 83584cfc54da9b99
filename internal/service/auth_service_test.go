package service

import (
	"context"
	"testing"

	"kirato/internal/model"
	"kirato/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T) (*AuthService, *WalletService) {
	db := newTestDB(t)
	cfg := newTestConfig()
	walletService := NewWalletService(db, cfg)
	return NewAuthService(db, cfg, walletService), walletService
}

func TestSignUp_CreatesWalletWithWelcomeBonus(t *testing.T) {
	svc, walletService := newAuthFixture(t)
	ctx := context.Background()

	result, err := svc.SignUp(ctx, "alice@example.com", "s3cret-pass", "Alice", model.RoleBuyer)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, model.RoleBuyer, result.User.Role)
	assert.False(t, result.User.EmailVerified)

	balance, err := walletService.GetBalance(ctx, result.User.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)
}

func TestSignUp_DuplicateEmailRejected(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "alice@example.com", "s3cret-pass", "Alice", model.RoleBuyer)
	require.NoError(t, err)

	_, err = svc.SignUp(ctx, "alice@example.com", "other-pass", "Alice2", model.RoleBuyer)
	assert.ErrorIs(t, err, repository.ErrEmailTaken)
}

func TestSignUp_UnknownRoleFallsBackToBuyer(t *testing.T) {
	svc, _ := newAuthFixture(t)

	result, err := svc.SignUp(context.Background(), "bob@example.com", "s3cret-pass", "Bob", "superuser")
	require.NoError(t, err)
	assert.Equal(t, model.RoleBuyer, result.User.Role)
}

func TestSignIn_SameErrorForUnknownEmailAndWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "alice@example.com", "s3cret-pass", "Alice", model.RoleBuyer)
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "alice@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, err = svc.SignIn(ctx, "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, ErrWrongPassword)
}

func TestTokenRoundTrip(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	result, err := svc.SignUp(ctx, "seller@example.com", "s3cret-pass", "Shop", model.RoleSeller)
	require.NoError(t, err)

	claims, err := svc.ParseToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.UserID)
	assert.Equal(t, model.RoleSeller, claims.Role)

	_, err = svc.ParseToken("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _ := newAuthFixture(t)
	db := svc.db
	ctx := context.Background()

	result, err := svc.SignUp(ctx, "alice@example.com", "old-password", "Alice", model.RoleBuyer)
	require.NoError(t, err)

	require.NoError(t, svc.SendPasswordReset(ctx, "alice@example.com"))

	// 邮件网关不在本服务内，从库里取重置凭证
	var user model.User
	require.NoError(t, db.Where("id = ?", result.User.ID).First(&user).Error)
	require.NotEmpty(t, user.ResetToken)

	require.NoError(t, svc.ResetPassword(ctx, user.ResetToken, "new-password"))

	_, err = svc.SignIn(ctx, "alice@example.com", "old-password")
	assert.ErrorIs(t, err, ErrWrongPassword)
	_, err = svc.SignIn(ctx, "alice@example.com", "new-password")
	assert.NoError(t, err)

	// 凭证一次性，用过即废
	err = svc.ResetPassword(ctx, user.ResetToken, "another-password")
	assert.ErrorIs(t, err, repository.ErrResetTokenInvalid)
}

func TestSendPasswordReset_SilentOnUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)

	assert.NoError(t, svc.SendPasswordReset(context.Background(), "ghost@example.com"))
}

func TestVerifyEmailFlow(t *testing.T) {
	svc, _ := newAuthFixture(t)
	db := svc.db
	ctx := context.Background()

	result, err := svc.SignUp(ctx, "alice@example.com", "s3cret-pass", "Alice", model.RoleBuyer)
	require.NoError(t, err)

	var user model.User
	require.NoError(t, db.Where("id = ?", result.User.ID).First(&user).Error)
	require.NotEmpty(t, user.VerifyToken)

	require.NoError(t, svc.VerifyEmail(ctx, user.VerifyToken))

	me, err := svc.Me(ctx, result.User.ID)
	require.NoError(t, err)
	assert.True(t, me.EmailVerified)
}
