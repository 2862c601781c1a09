package service

import (
	"bytes"
	"context"

	"github.com/gocarina/gocsv"
	"github.com/worksphere/billing/internal/domain/auditlog"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

// AuditService records and queries the billing operation log
type AuditService interface {
	Log(ctx context.Context, entry *auditlog.BillingOperationLog) error
	List(ctx context.Context, filter *types.BillingOperationLogFilter) (*ListBillingOperationLogsResponse, error)
	// ExportCSV writes every entry matching the filter, ignoring its page
	ExportCSV(ctx context.Context, filter *types.BillingOperationLogFilter) ([]byte, error)
}

type ListBillingOperationLogsResponse struct {
	Items []*auditlog.BillingOperationLog `json:"items"`
	Total int                             `json:"total"`
	Page  int                             `json:"page"`
	Size  int                             `json:"size"`
}

type auditService struct {
	ServiceParams
}

func NewAuditService(params ServiceParams) AuditService {
	return &auditService{ServiceParams: params}
}

func (s *auditService) Log(ctx context.Context, entry *auditlog.BillingOperationLog) error {
	if entry == nil || entry.TenantID == "" || entry.OperationType == "" {
		return ierr.NewError("audit entry requires tenant and operation").
			WithHint("Tenant ID and operation type are required").
			Mark(ierr.ErrValidation)
	}
	return s.AuditLogRepo.Create(ctx, entry)
}

func (s *auditService) List(ctx context.Context, filter *types.BillingOperationLogFilter) (*ListBillingOperationLogsResponse, error) {
	if filter == nil {
		filter = types.NewBillingOperationLogFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	items, err := s.AuditLogRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.AuditLogRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ListBillingOperationLogsResponse{
		Items: items,
		Total: total,
		Page:  filter.Page,
		Size:  filter.Size,
	}, nil
}

func (s *auditService) ExportCSV(ctx context.Context, filter *types.BillingOperationLogFilter) ([]byte, error) {
	if filter == nil {
		filter = types.NewBillingOperationLogFilter()
	}
	f := *filter
	f.Page = 0
	f.Size = types.FILTER_MAX_LIMIT
	if err := f.Validate(); err != nil {
		return nil, err
	}

	all := []*auditlog.BillingOperationLog{}
	for {
		items, err := s.AuditLogRepo.List(ctx, &f)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < f.Size {
			break
		}
		f.Page++
	}

	var buf bytes.Buffer
	if err := gocsv.Marshal(all, &buf); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to export audit log").
			Mark(ierr.ErrInternal)
	}

	s.Logger.WithContext(ctx).Infow("exported billing operation log",
		"tenant_id", filter.TenantID,
		"rows", len(all),
	)
	return buf.Bytes(), nil
}
