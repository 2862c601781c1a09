package types

import (
	"github.com/samber/lo"
	ierr "github.com/worksphere/billing/internal/errors"
)

type InvoiceStatus string

const (
	InvoiceStatusGenerated InvoiceStatus = "GENERATED"
	InvoiceStatusSigned    InvoiceStatus = "SIGNED"
	InvoiceStatusSent      InvoiceStatus = "SENT"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusGenerated,
		InvoiceStatusSigned,
		InvoiceStatusSent,
		InvoiceStatusPaid,
		InvoiceStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewErrorf("invalid invoice status: %s", s).
			WithHint("Please provide a valid invoice status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

const (
	// SignatureFormatXAdES is the signature format recorded on signed invoices
	SignatureFormatXAdES = "XAdES-BES"
)

// InvoiceHistoryFilter selects a tenant's invoices by issue date and status
type InvoiceHistoryFilter struct {
	*QueryFilter
	*TimeRangeFilter
	TenantID string          `json:"tenant_id" validate:"required"`
	Statuses []InvoiceStatus `json:"statuses,omitempty"`
}

func NewInvoiceHistoryFilter(tenantID string) *InvoiceHistoryFilter {
	return &InvoiceHistoryFilter{
		QueryFilter: NewDefaultQueryFilter(),
		TenantID:    tenantID,
	}
}

func (f *InvoiceHistoryFilter) Validate() error {
	if f.TenantID == "" {
		return ierr.NewError("tenant_id is required").
			WithHint("Tenant ID is required").
			Mark(ierr.ErrValidation)
	}
	if f.QueryFilter == nil {
		f.QueryFilter = NewDefaultQueryFilter()
	}
	if err := f.QueryFilter.Validate(); err != nil {
		return err
	}
	if err := f.TimeRangeFilter.Validate(); err != nil {
		return err
	}
	for _, s := range f.Statuses {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (f *InvoiceHistoryFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

func (f *InvoiceHistoryFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOffset()
	}
	return f.QueryFilter.GetOffset()
}
