package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"github.com/worksphere/billing/internal/cache"
	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/domain/auditlog"
	"github.com/worksphere/billing/internal/domain/usage"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

const (
	unitDefault = "unit"
	unitMB      = "mb"
	unitGB      = "gb"
)

var mbPerGB = decimal.NewFromInt(1024)

// UsageService fetches and normalizes metered usage from the metrics agent
type UsageService interface {
	FetchUsage(ctx context.Context, tenantID string, from, to time.Time) (*usage.Snapshot, error)
}

type usageService struct {
	ServiceParams
}

func NewUsageService(params ServiceParams) UsageService {
	return &usageService{ServiceParams: params}
}

func usageCacheKey(tenantID string, from, to time.Time) string {
	return fmt.Sprintf("%s%s:%d:%d", cache.PrefixUsage, tenantID, from.Unix(), to.Unix())
}

func (s *usageService) FetchUsage(ctx context.Context, tenantID string, from, to time.Time) (*usage.Snapshot, error) {
	if tenantID == "" {
		return nil, ierr.NewError("tenant_id is required").
			WithHint("Usage fetch needs a tenant").
			Mark(ierr.ErrValidation)
	}
	if to.Before(from) {
		return nil, ierr.NewError("usage window ends before it starts").
			WithHint("Invalid usage window").
			WithReportableDetails(map[string]interface{}{
				"from": from,
				"to":   to,
			}).
			Mark(ierr.ErrValidation)
	}

	key := usageCacheKey(tenantID, from, to)
	if raw, ok := s.Cache.Get(ctx, key); ok {
		if snap, ok := cache.UnmarshalCacheValue[usage.Snapshot](raw); ok {
			return snap, nil
		}
	}

	log := s.Logger.WithContext(ctx).With("tenant_id", tenantID)
	var metrics []usage.RawMetric
	attempt := 0
	fetch := func() error {
		attempt++
		actx, cancel := context.WithTimeout(ctx, s.Config.Billing.Timeouts.MetricsAgent)
		defer cancel()

		m, err := s.UsageSource.GetMetrics(actx, tenantID, from, to)
		if err != nil {
			if ierr.IsValidation(err) || ierr.IsHTTPClient(err) || ierr.IsNotFound(err) {
				return backoff.Permanent(err)
			}
			log.Warnw("usage fetch attempt failed", "attempt", attempt, "error", err)
			return err
		}
		metrics = m
		return nil
	}

	if err := backoff.Retry(fetch, backoff.WithContext(newRetryBackOff(s.Config.Billing.UsageFetch), ctx)); err != nil {
		s.audit(ctx, auditlog.New(ctx, tenantID, types.OperationFetchUsageFailed,
			fmt.Sprintf("attempts=%d error=%s", attempt, err)))
		return nil, ierr.WithError(err).
			WithHint("Usage could not be fetched from the metrics agent").
			WithReportableDetails(map[string]interface{}{
				"tenant_id": tenantID,
				"attempts":  attempt,
			}).
			Mark(ierr.ErrSystem)
	}

	snap := &usage.Snapshot{
		TenantID: tenantID,
		From:     from,
		To:       to,
		Records:  normalizeMetrics(metrics),
	}
	s.Cache.Set(ctx, key, snap, cache.ExpiryUsage)
	s.audit(ctx, auditlog.New(ctx, tenantID, types.OperationFetchUsage,
		fmt.Sprintf("records=%d units=%s", len(snap.Records), snap.Units())))
	log.Debugw("usage fetched", "records", len(snap.Records), "attempts", attempt)
	return snap, nil
}

// newRetryBackOff caps total attempts at MaxAttempts, first call included
func newRetryBackOff(cfg config.RetryConfig) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	if cfg.Multiplier > 0 {
		b.Multiplier = cfg.Multiplier
	}
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithMaxRetries(b, uint64(attempts-1))
}

// normalizeMetrics lowercases names, converts megabytes to gigabytes and
// drops negative readings.
func normalizeMetrics(raw []usage.RawMetric) []usage.Record {
	records := make([]usage.Record, 0, len(raw))
	for _, m := range raw {
		if m.Value.IsNegative() {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(m.Name))
		if name == "" {
			continue
		}
		unit := strings.ToLower(strings.TrimSpace(m.Unit))
		qty := m.Value
		switch unit {
		case "":
			unit = unitDefault
		case unitMB:
			qty = qty.DivRound(mbPerGB, 8)
			unit = unitGB
		}
		records = append(records, usage.Record{Metric: name, Quantity: qty, Unit: unit})
	}
	return records
}
