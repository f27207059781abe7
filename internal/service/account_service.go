package service

import (
	"context"
	"errors"
	"time"

	"github.com/thomas-denton/lease-intelligence/internal/apperr"
	"github.com/thomas-denton/lease-intelligence/internal/model"
	"github.com/thomas-denton/lease-intelligence/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AccountService manages the account directory that leases hang off.
type AccountService struct {
	db     *gorm.DB
	policy AccessPolicy
	logger *zap.Logger
}

func NewAccountService(db *gorm.DB, logger *zap.Logger) *AccountService {
	return &AccountService{db: db, logger: logger}
}

// AccountInput is the create payload.
type AccountInput struct {
	Email         string `json:"email"`
	Role          string `json:"role"`
	Tier          string `json:"tier"`
	AnalysesLimit int    `json:"analyses_limit"`
}

// Create registers a new account. Email is the natural key.
func (s *AccountService) Create(ctx context.Context, id Identity, in *AccountInput) (*model.Account, error) {
	if !s.policy.CanAdminister(id) {
		prometheus.RecordAccessDenied("account")
		return nil, denied("accounts")
	}
	if in.Email == "" {
		return nil, apperr.New(apperr.KindValidation, "email is required")
	}
	if in.Role == "" {
		in.Role = model.RoleTenant
	}
	if !model.ValidRole(in.Role) {
		return nil, apperr.New(apperr.KindInvalidEnum, "unknown role %q", in.Role)
	}
	if in.Tier == "" {
		in.Tier = model.TierFree
	}
	if !model.ValidTier(in.Tier) {
		return nil, apperr.New(apperr.KindInvalidEnum, "unknown tier %q", in.Tier)
	}

	account := model.Account{
		Email:         in.Email,
		Role:          in.Role,
		Tier:          in.Tier,
		AnalysesLimit: in.AnalysesLimit,
		Active:        true,
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.New(apperr.KindDuplicateExternalKey, "account with email %s already exists", in.Email)
		}
		return nil, err
	}
	s.logger.Info("account created",
		zap.Uint("account_id", account.ID),
		zap.String("role", account.Role),
		zap.String("tier", account.Tier))
	return &account, nil
}

// Get fetches an account. Non-admin callers may only see themselves.
func (s *AccountService) Get(ctx context.Context, id Identity, accountID uint) (*model.Account, error) {
	if !s.policy.CanAdminister(id) && id.AccountID != accountID {
		prometheus.RecordAccessDenied("account")
		return nil, denied("accounts")
	}
	var account model.Account
	if err := s.db.WithContext(ctx).First(&account, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "account %d not found", accountID)
		}
		return nil, err
	}
	return &account, nil
}

// Deactivate turns an account off without touching its leases. The historical
// record stays queryable for auditing.
func (s *AccountService) Deactivate(ctx context.Context, id Identity, accountID uint) error {
	if !s.policy.CanAdminister(id) {
		prometheus.RecordAccessDenied("account")
		return denied("accounts")
	}
	result := s.db.WithContext(ctx).Model(&model.Account{}).
		Where("id = ?", accountID).
		Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.New(apperr.KindNotFound, "account %d not found", accountID)
	}
	s.logger.Info("account deactivated", zap.Uint("account_id", accountID))
	return nil
}

// incrementUsageTx bumps the quota counter and activity timestamp inside the
// ingest transaction. A missing account is not an error: ingest accepts
// unattributed documents.
func (s *AccountService) incrementUsageTx(tx *gorm.DB, accountID *uint, now time.Time) error {
	if accountID == nil {
		return nil
	}
	return tx.Model(&model.Account{}).
		Where("id = ?", *accountID).
		Updates(map[string]interface{}{
			"analyses_used":    gorm.Expr("analyses_used + 1"),
			"last_activity_at": now,
		}).Error
}
