package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/worksphere/billing/internal/domain/auditlog"
	"github.com/worksphere/billing/internal/domain/billingcycle"
	"github.com/worksphere/billing/internal/domain/invoice"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

// AssembleInvoiceRequest carries amounts already produced by a Calculation.
// Assembly adds them and never re-derives any of them.
type AssembleInvoiceRequest struct {
	Cycle    *billingcycle.BillingCycle
	Currency string
	Base     decimal.Decimal
	Prorated decimal.Decimal
	Tax      decimal.Decimal
	TaxRate  decimal.Decimal
}

type ListInvoicesResponse struct {
	Items  []*invoice.Invoice `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

type InvoiceService interface {
	// Assemble builds, signs and persists the invoice of a cycle. A cycle
	// that already has an invoice gets it back unchanged and created is false.
	Assemble(ctx context.Context, req *AssembleInvoiceRequest) (inv *invoice.Invoice, created bool, err error)
	GetByBillingCycleID(ctx context.Context, cycleID string) (*invoice.Invoice, error)
	MarkPaid(ctx context.Context, inv *invoice.Invoice) error
	ListHistory(ctx context.Context, filter *types.InvoiceHistoryFilter) (*ListInvoicesResponse, error)
}

type invoiceService struct {
	ServiceParams
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{ServiceParams: params}
}

func (s *invoiceService) Assemble(ctx context.Context, req *AssembleInvoiceRequest) (*invoice.Invoice, bool, error) {
	if req == nil || req.Cycle == nil {
		return nil, false, ierr.NewError("billing cycle is required").
			WithHint("Invoice assembly needs a billing cycle").
			Mark(ierr.ErrValidation)
	}
	cycle := req.Cycle

	existing, err := s.InvoiceRepo.GetByBillingCycleID(ctx, cycle.ID)
	if err == nil {
		s.Logger.WithContext(ctx).Infow("reusing existing invoice",
			"invoice_id", existing.ID,
			"billing_cycle_id", cycle.ID,
		)
		return existing, false, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, false, err
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = strings.ToUpper(s.Config.Billing.Currency)
	}

	now := time.Now().UTC()
	base := types.GetDefaultBaseModel(ctx)
	base.TenantID = cycle.TenantID
	inv := &invoice.Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		BillingCycleID: cycle.ID,
		Currency:       currency,
		BaseAmount:     req.Base,
		ProratedAmount: req.Prorated,
		TaxAmount:      req.Tax,
		TaxRate:        req.TaxRate,
		TotalAmount:    req.Base.Add(req.Prorated).Add(req.Tax),
		Status:         types.InvoiceStatusGenerated,
		IssuedAt:       now,
		DueAt:          types.StartOfDay(cycle.PeriodEnd).AddDate(0, 0, s.Config.Billing.InvoiceNetDays),
		BaseModel:      base,
	}

	sig, err := s.InvoiceSigner.Sign(ctx, inv)
	if err != nil {
		s.Logger.WithContext(ctx).Errorw("invoice signing failed",
			"error", err,
			"tenant_id", cycle.TenantID,
			"billing_cycle_id", cycle.ID,
			"invoice_id", inv.ID,
		)
		return nil, false, ierr.WithError(ErrInvoiceSigningFailed).
			WithMessage(err.Error()).
			WithHint("Invoice could not be signed").
			WithReportableDetails(map[string]interface{}{
				"invoice_id":       inv.ID,
				"billing_cycle_id": cycle.ID,
			}).
			Mark(ierr.ErrInternal)
	}
	inv.Signed = true
	inv.SignedAt = &sig.SignedAt
	inv.SignatureFormat = sig.Format
	inv.Signature = sig.Signature
	inv.Status = types.InvoiceStatusSigned

	if err := s.InvoiceRepo.Create(ctx, inv); err != nil {
		return nil, false, err
	}

	s.audit(ctx, auditlog.New(ctx, cycle.TenantID, types.OperationInvoiceGenerated,
		"total="+inv.TotalAmount.StringFixed(2)+" "+inv.Currency).
		WithCycle(cycle.ID).
		WithInvoice(inv.ID))

	s.Logger.WithContext(ctx).Infow("invoice generated",
		"invoice_id", inv.ID,
		"tenant_id", inv.TenantID,
		"billing_cycle_id", cycle.ID,
		"total", inv.TotalAmount.String(),
	)
	return inv, true, nil
}

func (s *invoiceService) GetByBillingCycleID(ctx context.Context, cycleID string) (*invoice.Invoice, error) {
	return s.InvoiceRepo.GetByBillingCycleID(ctx, cycleID)
}

func (s *invoiceService) MarkPaid(ctx context.Context, inv *invoice.Invoice) error {
	if inv.Status == types.InvoiceStatusPaid {
		return nil
	}
	if inv.Status == types.InvoiceStatusCancelled {
		return ierr.NewError("cancelled invoice cannot be paid").
			WithHint("Invoice is cancelled").
			WithReportableDetails(map[string]interface{}{"invoice_id": inv.ID}).
			Mark(ierr.ErrInvalidOperation)
	}
	inv.Status = types.InvoiceStatusPaid
	inv.Touch(ctx)
	return s.InvoiceRepo.Update(ctx, inv)
}

func (s *invoiceService) ListHistory(ctx context.Context, filter *types.InvoiceHistoryFilter) (*ListInvoicesResponse, error) {
	if filter == nil {
		return nil, ierr.NewError("filter is required").
			WithHint("Invoice history needs a tenant filter").
			Mark(ierr.ErrValidation)
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	items, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.InvoiceRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ListInvoicesResponse{
		Items:  items,
		Total:  total,
		Limit:  filter.GetLimit(),
		Offset: filter.GetOffset(),
	}, nil
}
