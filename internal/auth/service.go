package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/richardliu001/wallet-ledger/internal/apperr"
	"github.com/richardliu001/wallet-ledger/internal/config"
	"github.com/richardliu001/wallet-ledger/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrTooManyKeys = apperr.New(apperr.Validation, "maximum number of active API keys reached")

var _ Gate = (*Service)(nil)

// Service implements Gate against the api_key, app_user and wallet tables.
// It only reads credentials; IssueAPIKey exists for operator tooling.
type Service struct {
	db            *gorm.DB
	jwtSecret     []byte
	sessionTTL    time.Duration
	maxActiveKeys int
	log           *zap.SugaredLogger
	now           func() time.Time
}

func NewService(db *gorm.DB, cfg config.AuthConfig, log *zap.SugaredLogger) *Service {
	return &Service{
		db:            db,
		jwtSecret:     []byte(cfg.JWTSecret),
		sessionTTL:    cfg.SessionTTL,
		maxActiveKeys: cfg.MaxActiveKeys,
		log:           log,
		now:           time.Now,
	}
}

// Authenticate resolves cred to a Principal. API keys win over bearer tokens.
func (s *Service) Authenticate(ctx context.Context, cred Credential) (Principal, error) {
	switch {
	case cred.APIKey != "":
		return s.authenticateKey(ctx, cred.APIKey)
	case cred.BearerToken != "":
		return s.authenticateSession(ctx, cred.BearerToken)
	}
	return Principal{}, ErrMissingCredential
}

func (s *Service) authenticateKey(ctx context.Context, raw string) (Principal, error) {
	var key model.APIKey
	err := s.db.WithContext(ctx).Where("key_hash = ?", HashKey(raw)).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Principal{}, ErrInvalidCredential
	}
	if err != nil {
		return Principal{}, err
	}
	if key.Revoked {
		return Principal{}, ErrInvalidCredential
	}
	if !key.Active(s.now()) {
		return Principal{}, ErrExpiredCredential
	}
	perms, err := ParsePermissions(key.Permissions)
	if err != nil {
		s.log.Warnw("api key carries unknown permission", "key_id", key.ID, "err", err)
		return Principal{}, ErrInvalidCredential
	}
	return s.principal(ctx, key.UserID, perms, MethodAPIKey)
}

func (s *Service) authenticateSession(ctx context.Context, token string) (Principal, error) {
	if len(s.jwtSecret) == 0 {
		return Principal{}, ErrInvalidCredential
	}
	claims, err := parseSessionToken(s.jwtSecret, token, s.now())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrExpiredCredential
		}
		return Principal{}, ErrInvalidCredential
	}
	return s.principal(ctx, claims.UserID, AllPermissions, MethodSession)
}

func (s *Service) principal(ctx context.Context, userID uint64, perms []Permission, method Method) (Principal, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Principal{}, ErrInvalidCredential
	}
	if err != nil {
		return Principal{}, err
	}
	p := Principal{UserID: u.ID, Email: u.Email, Permissions: perms, Method: method}

	var w model.Wallet
	err = s.db.WithContext(ctx).Select("id").Where("user_id = ?", u.ID).First(&w).Error
	switch {
	case err == nil:
		p.WalletID = w.ID
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return Principal{}, err
	}
	return p, nil
}

// Authorize fails with ErrForbidden unless p holds perm.
func (s *Service) Authorize(p Principal, perm Permission) error {
	if p.Has(perm) {
		return nil
	}
	return ErrForbidden
}

// IssueAPIKey creates a key for userID and returns the raw key, which is
// never stored. expiry is one of 1H, 1D, 1M, 1Y or empty for no expiry.
func (s *Service) IssueAPIKey(ctx context.Context, userID uint64, name string, rawPerms []string, expiry string) (string, *model.APIKey, error) {
	perms, err := ParsePermissions(rawPerms)
	if err != nil {
		return "", nil, err
	}
	now := s.now()
	expiresAt, err := ParseExpiry(expiry, now)
	if err != nil {
		return "", nil, err
	}
	raw, hash, err := GenerateAPIKey()
	if err != nil {
		return "", nil, err
	}
	tags := make([]string, len(perms))
	for i, p := range perms {
		tags[i] = string(p)
	}
	key := &model.APIKey{
		UserID:      userID,
		KeyHash:     hash,
		Prefix:      raw[:len(KeyPrefix)+6],
		Name:        name,
		Permissions: tags,
		ExpiresAt:   expiresAt,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u model.User
		if err := tx.Where("id = ?", userID).First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "user not found")
			}
			return err
		}
		var active int64
		if err := tx.Model(&model.APIKey{}).
			Where("user_id = ? AND revoked = ? AND (expires_at IS NULL OR expires_at > ?)", userID, false, now).
			Count(&active).Error; err != nil {
			return err
		}
		if active >= int64(s.maxActiveKeys) {
			return ErrTooManyKeys
		}
		return tx.Create(key).Error
	})
	if err != nil {
		return "", nil, err
	}
	s.log.Infow("api key issued", "user_id", userID, "key_id", key.ID, "prefix", key.Prefix)
	return raw, key, nil
}

// SessionToken issues a bearer token for userID using the configured secret.
func (s *Service) SessionToken(userID uint64, email string) (string, error) {
	if len(s.jwtSecret) == 0 {
		return "", errors.New("auth.jwt_secret is not configured")
	}
	return SignSessionToken(s.jwtSecret, userID, email, s.sessionTTL, s.now())
}
