package discrepancy

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridian-retail/backoffice/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Insert(ctx context.Context, rep Report) error
	UpdateReason(ctx context.Context, orderItemID int64, reason string) (Report, error)
	GetByOrderItem(ctx context.Context, orderItemID int64) (Report, error)
	List(ctx context.Context, filter Filter) ([]Report, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service files and serves discrepancy reports.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Input describes one delivered item to reconcile.
type Input struct {
	OrderID     int64
	OrderItemID int64
	ProductID   int64
	ShippedQty  int64
	ReceivedQty int64
	ReportedBy  int64
}

// File records reports for every input whose quantities differ. Matching
// quantities produce no record. Filing is retry-safe: a second call for the
// same order item leaves the first report in place.
func (s *Service) File(ctx context.Context, inputs []Input) ([]Report, error) {
	var filed []Report
	for _, in := range inputs {
		class := Classify(in.ShippedQty, in.ReceivedQty)
		if class == ClassNormal {
			continue
		}
		rep := Report{
			OrderID:        in.OrderID,
			OrderItemID:    in.OrderItemID,
			ProductID:      in.ProductID,
			ShippedQty:     in.ShippedQty,
			ReceivedQty:    in.ReceivedQty,
			Difference:     in.ReceivedQty - in.ShippedQty,
			Classification: class,
			ReportedBy:     in.ReportedBy,
		}
		if err := s.repo.Insert(ctx, rep); err != nil {
			return filed, fmt.Errorf("discrepancy: file report for item %d: %w", in.OrderItemID, err)
		}
		filed = append(filed, rep)
	}
	if s.audit != nil && len(filed) > 0 {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  inputs[0].ReportedBy,
			Action:   "discrepancy:file",
			Entity:   "order",
			EntityID: fmt.Sprintf("%d", inputs[0].OrderID),
			Meta:     map[string]any{"reports": len(filed)},
		})
	}
	return filed, nil
}

// UpsertReason attaches free text to an existing report. The operation is
// idempotent and may be retried freely; absence of a reason never blocks
// the report itself.
func (s *Service) UpsertReason(ctx context.Context, orderItemID int64, reason string, actorID int64) (Report, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Report{}, ErrEmptyReason
	}
	rep, err := s.repo.UpdateReason(ctx, orderItemID, reason)
	if err != nil {
		return Report{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "discrepancy:reason",
			Entity:   "discrepancy_report",
			EntityID: fmt.Sprintf("%d", rep.ID),
			Meta:     map[string]any{"order_item_id": orderItemID},
		})
	}
	return rep, nil
}

// GetByOrderItem fetches one report.
func (s *Service) GetByOrderItem(ctx context.Context, orderItemID int64) (Report, error) {
	return s.repo.GetByOrderItem(ctx, orderItemID)
}

// List returns reports for review.
func (s *Service) List(ctx context.Context, filter Filter) ([]Report, error) {
	return s.repo.List(ctx, filter)
}
