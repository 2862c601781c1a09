package testutil

import (
	"context"

	"github.com/worksphere/billing/internal/domain/payment"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

// InMemoryPaymentStore implements payment.Repository
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Result]
}

func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{InMemoryStore: NewInMemoryStore[*payment.Result]()}
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, r *payment.Result) error {
	return s.InMemoryStore.Create(ctx, r.ID, r.Copy())
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Result, error) {
	r, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, paymentNotFound("id", id)
	}
	return r.Copy(), nil
}

func (s *InMemoryPaymentStore) Update(ctx context.Context, r *payment.Result) error {
	return s.InMemoryStore.Update(ctx, r.ID, r.Copy())
}

func (s *InMemoryPaymentStore) GetSuccessfulByInvoiceID(ctx context.Context, invoiceID string) (*payment.Result, error) {
	return s.findOne(ctx, "invoice_id", invoiceID, func(r *payment.Result) bool {
		return r.InvoiceID == invoiceID && r.IsSuccessful()
	})
}

func (s *InMemoryPaymentStore) GetLatestByInvoiceID(ctx context.Context, invoiceID string) (*payment.Result, error) {
	items, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, r *payment.Result, _ interface{}) bool {
		return r.InvoiceID == invoiceID
	}, func(i, j *payment.Result) bool {
		return i.CreatedAt.After(j.CreatedAt)
	})
	if len(items) == 0 {
		return nil, paymentNotFound("invoice_id", invoiceID)
	}
	return items[0].Copy(), nil
}

func (s *InMemoryPaymentStore) GetByTransactionID(ctx context.Context, transactionID string) (*payment.Result, error) {
	return s.findOne(ctx, "transaction_id", transactionID, func(r *payment.Result) bool {
		return r.TransactionID == transactionID
	})
}

func (s *InMemoryPaymentStore) HasSuccessfulForBillingCycle(ctx context.Context, billingCycleID string) (bool, error) {
	n, err := s.InMemoryStore.Count(ctx, nil, func(_ context.Context, r *payment.Result, _ interface{}) bool {
		return r.BillingCycleID == billingCycleID && r.Status == types.PaymentStatusSuccess && !r.Reversed
	})
	return n > 0, err
}

func (s *InMemoryPaymentStore) findOne(ctx context.Context, field, value string, match func(*payment.Result) bool) (*payment.Result, error) {
	items, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, r *payment.Result, _ interface{}) bool {
		return match(r)
	}, nil)
	if len(items) == 0 {
		return nil, paymentNotFound(field, value)
	}
	return items[0].Copy(), nil
}

func paymentNotFound(field, value string) error {
	return ierr.NewError("payment not found").
		WithHint("Payment not found").
		WithReportableDetails(map[string]interface{}{field: value}).
		Mark(ierr.ErrNotFound)
}

// InMemoryPaymentTokenStore implements payment.TokenRepository
type InMemoryPaymentTokenStore struct {
	*InMemoryStore[*payment.Token]
}

func NewInMemoryPaymentTokenStore() *InMemoryPaymentTokenStore {
	return &InMemoryPaymentTokenStore{InMemoryStore: NewInMemoryStore[*payment.Token]()}
}

func (s *InMemoryPaymentTokenStore) Create(ctx context.Context, t *payment.Token) error {
	return s.InMemoryStore.Create(ctx, t.ID, t.Copy())
}

func (s *InMemoryPaymentTokenStore) Get(ctx context.Context, id string) (*payment.Token, error) {
	t, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("payment token not found").
			WithHint("Payment token not found").
			WithReportableDetails(map[string]interface{}{"id": id}).
			Mark(ierr.ErrNotFound)
	}
	return t.Copy(), nil
}

func (s *InMemoryPaymentTokenStore) GetActiveForTenant(ctx context.Context, tenantID string) (*payment.Token, error) {
	items, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, t *payment.Token, _ interface{}) bool {
		return t.TenantID == tenantID && !t.Revoked
	}, func(i, j *payment.Token) bool {
		return i.CreatedAt.After(j.CreatedAt)
	})
	if len(items) == 0 {
		return nil, ierr.NewError("payment token not found").
			WithHint("Tenant has no active payment token").
			WithReportableDetails(map[string]interface{}{"tenant_id": tenantID}).
			Mark(ierr.ErrNotFound)
	}
	return items[0].Copy(), nil
}

func (s *InMemoryPaymentTokenStore) Update(ctx context.Context, t *payment.Token) error {
	return s.InMemoryStore.Update(ctx, t.ID, t.Copy())
}
