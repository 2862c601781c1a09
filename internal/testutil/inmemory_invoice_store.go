package testutil

import (
	"context"

	"github.com/samber/lo"
	"github.com/worksphere/billing/internal/domain/invoice"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{InMemoryStore: NewInMemoryStore[*invoice.Invoice]()}
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if _, err := s.GetByBillingCycleID(ctx, inv.BillingCycleID); err == nil {
		return ierr.NewError("invoice already exists for billing cycle").
			WithHint("Billing cycle already has an invoice").
			WithReportableDetails(map[string]interface{}{"billing_cycle_id": inv.BillingCycleID}).
			Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, inv.ID, inv.Copy())
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("invoice not found").
			WithHint("Invoice not found").
			WithReportableDetails(map[string]interface{}{"id": id}).
			Mark(ierr.ErrNotFound)
	}
	return inv.Copy(), nil
}

func (s *InMemoryInvoiceStore) GetByBillingCycleID(ctx context.Context, billingCycleID string) (*invoice.Invoice, error) {
	items, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, inv *invoice.Invoice, _ interface{}) bool {
		return inv.BillingCycleID == billingCycleID
	}, nil)
	if len(items) == 0 {
		return nil, ierr.NewError("invoice not found").
			WithHint("Invoice not found").
			WithReportableDetails(map[string]interface{}{"billing_cycle_id": billingCycleID}).
			Mark(ierr.ErrNotFound)
	}
	return items[0].Copy(), nil
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	return s.InMemoryStore.Update(ctx, inv.ID, inv.Copy())
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceHistoryFilter) ([]*invoice.Invoice, error) {
	items, err := s.InMemoryStore.List(ctx, filter, invoiceFilterFn, func(i, j *invoice.Invoice) bool {
		if filter.QueryFilter.GetOrder() == string(types.SortOrderAsc) {
			return i.IssuedAt.Before(j.IssuedAt)
		}
		return i.IssuedAt.After(j.IssuedAt)
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(paginate(items, filter.GetOffset(), filter.GetLimit()), func(inv *invoice.Invoice, _ int) *invoice.Invoice {
		return inv.Copy()
	}), nil
}

func (s *InMemoryInvoiceStore) Count(ctx context.Context, filter *types.InvoiceHistoryFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, invoiceFilterFn)
}

func invoiceFilterFn(_ context.Context, inv *invoice.Invoice, filter interface{}) bool {
	f, ok := filter.(*types.InvoiceHistoryFilter)
	if !ok || f == nil {
		return true
	}
	if inv.TenantID != f.TenantID {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, inv.Status) {
		return false
	}
	return f.TimeRangeFilter.Contains(inv.IssuedAt)
}
