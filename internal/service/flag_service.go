package service

import (
	"context"
	"errors"

	"github.com/thomas-denton/lease-intelligence/internal/apperr"
	"github.com/thomas-denton/lease-intelligence/internal/model"
	"github.com/thomas-denton/lease-intelligence/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FlagService is the risk flag store. Flags are append-only findings from the
// reasoning engine: all flags from one analysis pass are attached together,
// none is ever updated, and they disappear only by cascade with their lease.
type FlagService struct {
	db     *gorm.DB
	policy AccessPolicy
	logger *zap.Logger
}

func NewFlagService(db *gorm.DB, logger *zap.Logger) *FlagService {
	return &FlagService{db: db, logger: logger}
}

// FlagInput carries one finding from the reasoning engine.
type FlagInput struct {
	Slug              string  `json:"flag_id"`
	Severity          string  `json:"severity"`
	Category          string  `json:"category"`
	Description       string  `json:"short_description"`
	Detail            string  `json:"detailed_explanation"`
	ClauseCitation    *string `json:"raw_clause_citation"`
	StatuteCitation   *string `json:"statute_citation"`
	JurisdictionNote  *string `json:"jurisdiction_note"`
	RecommendedAction *string `json:"what_to_negotiate"`
	RefusalFallback   *string `json:"if_they_refuse"`
}

// ValidateFlagInput enforces the flag invariants before persistence.
func ValidateFlagInput(in *FlagInput) error {
	if in.Slug == "" {
		return apperr.New(apperr.KindValidation, "flag slug is required")
	}
	if !model.ValidSeverity(in.Severity) {
		return apperr.New(apperr.KindInvalidEnum, "unknown severity %q on flag %s", in.Severity, in.Slug)
	}
	return nil
}

// attachAllTx writes one analysis pass's flags in a single batched insert
// inside an existing transaction.
func (s *FlagService) attachAllTx(tx *gorm.DB, leaseID uint, inputs []FlagInput) ([]model.RiskFlag, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	flags := make([]model.RiskFlag, 0, len(inputs))
	for i := range inputs {
		in := &inputs[i]
		if err := ValidateFlagInput(in); err != nil {
			return nil, err
		}
		flags = append(flags, model.RiskFlag{
			LeaseRecordID:     leaseID,
			Slug:              in.Slug,
			Severity:          in.Severity,
			Category:          in.Category,
			Description:       in.Description,
			Detail:            in.Detail,
			ClauseCitation:    in.ClauseCitation,
			StatuteCitation:   in.StatuteCitation,
			JurisdictionNote:  in.JurisdictionNote,
			RecommendedAction: in.RecommendedAction,
			RefusalFallback:   in.RefusalFallback,
		})
	}
	if err := tx.Create(&flags).Error; err != nil {
		return nil, classifyPgError(err, "attach risk flags")
	}
	return flags, nil
}

// AttachAll attaches a batch of flags to a lease the caller may mutate.
func (s *FlagService) AttachAll(ctx context.Context, id Identity, leaseID uint, inputs []FlagInput) ([]model.RiskFlag, error) {
	var lease model.LeaseRecord
	if err := s.db.WithContext(ctx).First(&lease, leaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "lease %d not found", leaseID)
		}
		return nil, err
	}
	if !s.policy.CanMutateLease(id, &lease) {
		prometheus.RecordAccessDenied("risk_flag")
		return nil, denied("risk flags")
	}

	var flags []model.RiskFlag
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		flags, txErr = s.attachAllTx(tx, leaseID, inputs)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("risk flags attached",
		zap.Uint("lease_id", leaseID),
		zap.Int("count", len(flags)))
	return flags, nil
}

// ListForLease returns a lease's flags ordered most severe first, the order
// report renderers present them in.
func (s *FlagService) ListForLease(ctx context.Context, id Identity, leaseID uint) ([]model.RiskFlag, error) {
	var lease model.LeaseRecord
	if err := s.db.WithContext(ctx).First(&lease, leaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "lease %d not found", leaseID)
		}
		return nil, err
	}
	if !s.policy.CanReadLease(id, &lease) {
		prometheus.RecordAccessDenied("risk_flag")
		return nil, denied("risk flags")
	}

	var flags []model.RiskFlag
	err := s.db.WithContext(ctx).
		Where("lease_record_id = ?", leaseID).
		Order("CASE severity WHEN 'CRITICAL' THEN 0 WHEN 'HIGH' THEN 1 WHEN 'MEDIUM' THEN 2 WHEN 'LOW' THEN 3 ELSE 4 END, id ASC").
		Find(&flags).Error
	if err != nil {
		return nil, err
	}
	return flags, nil
}
