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

// CurrentSchemaVersion identifies the extraction schema this build writes.
// Bump it whenever the persisted lease shape changes.
const CurrentSchemaVersion = "2.1.0"

// SchemaService maintains the append-only ledger of extraction schema
// versions, so old rows can always be traced to the shape they were
// written under.
type SchemaService struct {
	db     *gorm.DB
	policy AccessPolicy
	logger *zap.Logger
}

func NewSchemaService(db *gorm.DB, logger *zap.Logger) *SchemaService {
	return &SchemaService{db: db, logger: logger}
}

// EnsureCurrent records CurrentSchemaVersion at boot if the ledger does not
// already carry it. Idempotent across restarts.
func (s *SchemaService) EnsureCurrent(ctx context.Context) error {
	var existing model.SchemaVersion
	err := s.db.WithContext(ctx).
		Where("version = ?", CurrentSchemaVersion).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	entry := model.SchemaVersion{Version: CurrentSchemaVersion}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		// another instance may have raced us to the same version
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}
	s.logger.Info("schema version recorded", zap.String("version", CurrentSchemaVersion))
	return nil
}

// Append records a new version in the ledger. Admin only; versions are never
// edited or removed.
func (s *SchemaService) Append(ctx context.Context, id Identity, version string) (*model.SchemaVersion, error) {
	if !s.policy.CanAdminister(id) {
		prometheus.RecordAccessDenied("schema_version")
		return nil, denied("schema versions")
	}
	if version == "" {
		return nil, apperr.New(apperr.KindValidation, "version is required")
	}
	entry := model.SchemaVersion{Version: version}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.New(apperr.KindDuplicateExternalKey, "schema version %s already recorded", version)
		}
		return nil, err
	}
	s.logger.Info("schema version appended", zap.String("version", version))
	return &entry, nil
}

// List returns the full ledger, oldest first.
func (s *SchemaService) List(ctx context.Context) ([]model.SchemaVersion, error) {
	var versions []model.SchemaVersion
	err := s.db.WithContext(ctx).Order("applied_at ASC, id ASC").Find(&versions).Error
	return versions, err
}
