package testutil

import (
	"context"

	"github.com/worksphere/billing/internal/domain/auditlog"
	"github.com/worksphere/billing/internal/types"
)

// InMemoryAuditLogStore implements auditlog.Repository
type InMemoryAuditLogStore struct {
	*InMemoryStore[*auditlog.BillingOperationLog]
}

func NewInMemoryAuditLogStore() *InMemoryAuditLogStore {
	return &InMemoryAuditLogStore{InMemoryStore: NewInMemoryStore[*auditlog.BillingOperationLog]()}
}

func (s *InMemoryAuditLogStore) Create(ctx context.Context, log *auditlog.BillingOperationLog) error {
	cp := *log
	return s.InMemoryStore.Create(ctx, log.ID, &cp)
}

func (s *InMemoryAuditLogStore) List(ctx context.Context, filter *types.BillingOperationLogFilter) ([]*auditlog.BillingOperationLog, error) {
	items, err := s.InMemoryStore.List(ctx, filter, auditLogFilterFn, auditLogSortFn(filter))
	if err != nil {
		return nil, err
	}
	return paginate(items, filter.Offset(), filter.Size), nil
}

func (s *InMemoryAuditLogStore) Count(ctx context.Context, filter *types.BillingOperationLogFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, auditLogFilterFn)
}

// ByOperation returns every entry of one operation type, oldest first
func (s *InMemoryAuditLogStore) ByOperation(op types.OperationType) []*auditlog.BillingOperationLog {
	items, _ := s.InMemoryStore.List(context.Background(), nil, func(_ context.Context, l *auditlog.BillingOperationLog, _ interface{}) bool {
		return l.OperationType == op
	}, func(i, j *auditlog.BillingOperationLog) bool { return i.Timestamp.Before(j.Timestamp) })
	return items
}

func auditLogFilterFn(_ context.Context, l *auditlog.BillingOperationLog, filter interface{}) bool {
	f, ok := filter.(*types.BillingOperationLogFilter)
	if !ok || f == nil {
		return true
	}
	if f.TenantID != "" && l.TenantID != f.TenantID {
		return false
	}
	if f.BillingCycleID != "" && l.BillingCycleID != f.BillingCycleID {
		return false
	}
	if f.OperationType != "" && l.OperationType != f.OperationType {
		return false
	}
	return f.TimeRangeFilter.Contains(l.Timestamp)
}

func auditLogSortFn(f *types.BillingOperationLogFilter) SortFunc[*auditlog.BillingOperationLog] {
	return func(i, j *auditlog.BillingOperationLog) bool {
		var less bool
		if f.SortBy == types.AuditSortOperationType && i.OperationType != j.OperationType {
			less = i.OperationType < j.OperationType
		} else if !i.Timestamp.Equal(j.Timestamp) {
			less = i.Timestamp.Before(j.Timestamp)
		} else {
			less = i.ID < j.ID
		}
		if f.Asc {
			return less
		}
		return !less
	}
}
