package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/worksphere/billing/internal/domain/invoice"
	"github.com/worksphere/billing/internal/domain/taxrule"
	"github.com/worksphere/billing/internal/domain/usage"
	"github.com/worksphere/billing/internal/types"
)

var errNotifyFailed = errors.New("orchestrator unavailable")

// NoopTransactor runs fn inline; the in-memory stores have no transactions
type NoopTransactor struct{}

func (NoopTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// StaticTaxSource serves a fixed rule map
type StaticTaxSource struct {
	Rules map[string]decimal.Decimal
	Err   error
}

func NewStaticTaxSource(rules map[string]string) *StaticTaxSource {
	s := &StaticTaxSource{Rules: make(map[string]decimal.Decimal, len(rules))}
	for k, v := range rules {
		s.Rules[strings.ToUpper(k)] = decimal.RequireFromString(v)
	}
	return s
}

func (s *StaticTaxSource) Match(_ context.Context, country, planType string) ([]*taxrule.TaxRule, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var out []*taxrule.TaxRule
	for _, key := range []string{taxrule.Key(country, planType), taxrule.Key(country, taxrule.Wildcard)} {
		if rate, ok := s.Rules[key]; ok {
			rule, _ := taxrule.Parse(key, rate)
			out = append(out, rule)
		}
	}
	return out, nil
}

// StaticSigner signs every invoice with a fixed signature, or fails with Err
type StaticSigner struct {
	Err   error
	Calls int
}

func (s *StaticSigner) Sign(_ context.Context, inv *invoice.Invoice) (*invoice.SignatureResult, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	return &invoice.SignatureResult{
		Signature: "sig-" + inv.ID,
		Format:    types.SignatureFormatXAdES,
		SignedAt:  time.Now().UTC(),
	}, nil
}

// StaticUsageSource returns the same metrics for every tenant, failing the
// first Failures calls.
type StaticUsageSource struct {
	mu       sync.Mutex
	Metrics  []usage.RawMetric
	Failures int
	Calls    int
}

func (s *StaticUsageSource) GetMetrics(_ context.Context, _ string, _, _ time.Time) ([]usage.RawMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if s.Calls <= s.Failures {
		return nil, errors.New("metrics agent unavailable")
	}
	return s.Metrics, nil
}

// RecordingMailer records invoice emails
type RecordingMailer struct {
	mu   sync.Mutex
	Sent []string
	Err  error
}

func (m *RecordingMailer) SendInvoice(_ context.Context, to string, inv *invoice.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, to+":"+inv.ID)
	return nil
}
