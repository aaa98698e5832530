// Package service implements the provisioning executor: the routine that
// turns a pending registration submission into profile rows once the owner's
// email is verified.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"tutorbase/internal/audit"
	"tutorbase/internal/platform/metrics"
	"tutorbase/internal/profile/models"
)

// RecordStore defines the persistence interface for profile rows.
// Error Contract: inserts return sentinel.ErrPolicyDenied for access-policy
// rejections, sentinel.ErrAlreadyExists for duplicate rows, and wrapped
// infrastructure errors otherwise.
type RecordStore interface {
	InsertProfile(ctx context.Context, p *models.Profile) error
	InsertTutorProfile(ctx context.Context, p *models.TutorProfile) error
	InsertStudentProfile(ctx context.Context, p *models.StudentProfile) error
}

// AssetUploader pushes profile photos to the record store's asset bucket.
type AssetUploader interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error)
}

// AuditPublisher records provisioning outcomes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the provisioning executor.
type Service struct {
	records RecordStore
	assets  AssetUploader
	logger  *slog.Logger
	auditP  AuditPublisher
	metrics *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAssetUploader enables best-effort photo upload after provisioning.
func WithAssetUploader(uploader AssetUploader) Option {
	return func(s *Service) {
		s.assets = uploader
	}
}

// WithAuditPublisher enables audit event emission.
func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditP = publisher
	}
}

// WithMetrics enables provisioning outcome counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs the provisioning executor.
func New(records RecordStore, opts ...Option) (*Service, error) {
	if records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	svc := &Service{records: records}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc, nil
}

func (s *Service) countOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.ProvisioningOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if s.auditP == nil {
		return
	}
	if err := s.auditP.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}
