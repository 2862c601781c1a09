package types

import (
	"github.com/samber/lo"
	ierr "github.com/worksphere/billing/internal/errors"
)

// OperationType classifies entries of the billing operation log
type OperationType string

const (
	OperationScheduleCycle    OperationType = "SCHEDULE_CYCLE"
	OperationBillingStarted   OperationType = "BILLING_STARTED"
	OperationBillingCompleted OperationType = "BILLING_COMPLETED"
	OperationBillingFailed    OperationType = "BILLING_FAILED"
	OperationRetryExhausted   OperationType = "RETRY_EXHAUSTED"
	OperationInvoiceGenerated OperationType = "INVOICE_GENERATED"
	OperationPayment          OperationType = "PAYMENT"
	OperationPaymentReversed  OperationType = "PAYMENT_REVERSED"
	OperationFetchUsage       OperationType = "FETCH_USAGE"
	OperationFetchUsageFailed OperationType = "FETCH_USAGE_FAILED"
	OperationRenewal          OperationType = "RENEWAL"
	OperationNonPayment       OperationType = "NON_PAYMENT"
	OperationNotification     OperationType = "NOTIFICATION"
)

const (
	AuditSortTimestamp     = "timestamp"
	AuditSortOperationType = "operation_type"
)

// BillingOperationLogFilter is the audit query contract: page is zero based
type BillingOperationLogFilter struct {
	*TimeRangeFilter
	TenantID       string        `json:"tenant_id,omitempty"`
	BillingCycleID string        `json:"billing_cycle_id,omitempty"`
	OperationType  OperationType `json:"operation_type,omitempty"`
	Page           int           `json:"page"`
	Size           int           `json:"size"`
	SortBy         string        `json:"sort_by"`
	Asc            bool          `json:"asc"`
}

func NewBillingOperationLogFilter() *BillingOperationLogFilter {
	return &BillingOperationLogFilter{
		Size:   FILTER_DEFAULT_LIMIT,
		SortBy: AuditSortTimestamp,
	}
}

func (f *BillingOperationLogFilter) Validate() error {
	if f.Page < 0 {
		return ierr.NewError("page cannot be negative").
			WithHint("Page is zero based").
			Mark(ierr.ErrValidation)
	}
	if f.Size == 0 {
		f.Size = FILTER_DEFAULT_LIMIT
	}
	if f.Size < 0 || f.Size > FILTER_MAX_LIMIT {
		return ierr.NewErrorf("size must be between 1 and %d", FILTER_MAX_LIMIT).
			WithHint("Invalid page size").
			Mark(ierr.ErrValidation)
	}
	if f.SortBy == "" {
		f.SortBy = AuditSortTimestamp
	}
	if !lo.Contains([]string{AuditSortTimestamp, AuditSortOperationType}, f.SortBy) {
		return ierr.NewErrorf("unsupported sort field: %s", f.SortBy).
			WithHint("Sort by timestamp or operation_type").
			Mark(ierr.ErrValidation)
	}
	return f.TimeRangeFilter.Validate()
}

func (f *BillingOperationLogFilter) Offset() int {
	return f.Page * f.Size
}
