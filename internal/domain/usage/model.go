package usage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one normalized metric reading
type Record struct {
	Metric   string          `json:"metric"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
}

// Snapshot is the usage of a tenant over a window
type Snapshot struct {
	TenantID string    `json:"tenant_id"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Records  []Record  `json:"records"`
}

// Total sums the quantities of a metric
func (s *Snapshot) Total(metric string) decimal.Decimal {
	total := decimal.Zero
	for _, r := range s.Records {
		if r.Metric == metric {
			total = total.Add(r.Quantity)
		}
	}
	return total
}

// Units sums every record regardless of metric
func (s *Snapshot) Units() decimal.Decimal {
	total := decimal.Zero
	for _, r := range s.Records {
		total = total.Add(r.Quantity)
	}
	return total
}

// RawMetric is a reading as reported by the metrics agent
type RawMetric struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
	Unit  string          `json:"unit"`
}

// Source reports raw usage for a tenant window
type Source interface {
	GetMetrics(ctx context.Context, tenantID string, from, to time.Time) ([]RawMetric, error)
}
