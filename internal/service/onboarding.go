package service

import (
	"context"
	"strings"

	"github.com/richardliu001/wallet-ledger/internal/apperr"
	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/richardliu001/wallet-ledger/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidEmail = apperr.New(apperr.Validation, "a valid email is required")

// OnboardingService opens the user and wallet pair a login creates.
type OnboardingService struct {
	repo repo.Store
	log  *zap.SugaredLogger
}

func NewOnboardingService(r repo.Store, logger *zap.SugaredLogger) *OnboardingService {
	return &OnboardingService{repo: r, log: logger}
}

// Provision creates the user and its zero-balance wallet together.
func (s *OnboardingService) Provision(ctx context.Context, email, name string) (*model.User, *model.Wallet, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if at := strings.IndexByte(email, '@'); at <= 0 || at == len(email)-1 {
		return nil, nil, ErrInvalidEmail
	}

	u := &model.User{Email: email, Name: strings.TrimSpace(name)}
	var w *model.Wallet
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		if err := s.repo.CreateUser(ctx, tx, u); err != nil {
			return err
		}
		var err error
		w, err = s.repo.CreateWallet(ctx, tx, u.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.Infow("user provisioned", "user_id", u.ID, "wallet_id", w.ID, "wallet_number", w.WalletNumber)
	return u, w, nil
}
