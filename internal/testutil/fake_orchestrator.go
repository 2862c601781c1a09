package testutil

import (
	"context"
	"sync"

	"github.com/worksphere/billing/internal/domain/tenant"
)

// FakeOrchestrator records tenant lifecycle calls
type FakeOrchestrator struct {
	mu sync.Mutex

	Err error
	// NotifyFailures makes the first N NotifyPayment calls fail
	NotifyFailures int

	Suspended   []string
	Cancelled   []string
	Reactivated []string
	Notices     []*tenant.PaymentNotice
	NotifyCalls int
}

func NewFakeOrchestrator() *FakeOrchestrator {
	return &FakeOrchestrator{}
}

func (o *FakeOrchestrator) SuspendTenant(_ context.Context, tenantID, _ string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Suspended = append(o.Suspended, tenantID)
	return o.Err
}

func (o *FakeOrchestrator) CancelTenant(_ context.Context, tenantID, _ string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Cancelled = append(o.Cancelled, tenantID)
	return o.Err
}

func (o *FakeOrchestrator) ReactivateTenant(_ context.Context, tenantID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Reactivated = append(o.Reactivated, tenantID)
	return o.Err
}

func (o *FakeOrchestrator) NotifyPayment(_ context.Context, notice *tenant.PaymentNotice) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.NotifyCalls++
	if o.NotifyCalls <= o.NotifyFailures {
		return errNotifyFailed
	}
	o.Notices = append(o.Notices, notice)
	return o.Err
}

func (o *FakeOrchestrator) Calls() (suspended, cancelled, reactivated int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.Suspended), len(o.Cancelled), len(o.Reactivated)
}
