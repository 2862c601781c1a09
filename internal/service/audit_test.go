package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/worksphere/billing/internal/domain/auditlog"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/testutil"
	"github.com/worksphere/billing/internal/types"
)

type AuditServiceSuite struct {
	testutil.BaseServiceTestSuite
	service AuditService
	base    time.Time
}

func TestAuditService(t *testing.T) {
	suite.Run(t, new(AuditServiceSuite))
}

func (s *AuditServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewAuditService(newTestParams(&s.BaseServiceTestSuite))
	s.base = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	entries := []struct {
		tenant string
		cycle  string
		op     types.OperationType
	}{
		{"tenant_a", "bc_1", types.OperationBillingStarted},
		{"tenant_a", "bc_1", types.OperationPayment},
		{"tenant_a", "bc_1", types.OperationBillingCompleted},
		{"tenant_a", "bc_2", types.OperationBillingFailed},
		{"tenant_b", "bc_3", types.OperationBillingStarted},
	}
	for i, e := range entries {
		entry := auditlog.New(s.GetContext(), e.tenant, e.op, "details").WithCycle(e.cycle)
		entry.Timestamp = s.base.Add(time.Duration(i) * time.Hour)
		s.Require().NoError(s.service.Log(s.GetContext(), entry))
	}
}

func (s *AuditServiceSuite) TestLog_Validation() {
	err := s.service.Log(s.GetContext(), &auditlog.BillingOperationLog{TenantID: "tenant_a"})
	s.True(ierr.IsValidation(err))

	err = s.service.Log(s.GetContext(), nil)
	s.True(ierr.IsValidation(err))
}

func (s *AuditServiceSuite) TestList_FiltersAndSortsNewestFirst() {
	filter := types.NewBillingOperationLogFilter()
	filter.TenantID = "tenant_a"

	res, err := s.service.List(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Equal(4, res.Total)
	s.Require().Len(res.Items, 4)
	s.Equal(types.OperationBillingFailed, res.Items[0].OperationType)
	s.Equal(types.OperationBillingStarted, res.Items[3].OperationType)

	filter.BillingCycleID = "bc_1"
	filter.OperationType = types.OperationPayment
	res, err = s.service.List(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Equal(1, res.Total)
}

func (s *AuditServiceSuite) TestList_PagesAreZeroBased() {
	filter := types.NewBillingOperationLogFilter()
	filter.TenantID = "tenant_a"
	filter.Size = 3
	filter.Asc = true

	first, err := s.service.List(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Len(first.Items, 3)
	s.Equal(4, first.Total)
	s.Equal(types.OperationBillingStarted, first.Items[0].OperationType)

	filter.Page = 1
	second, err := s.service.List(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Require().Len(second.Items, 1)
	s.Equal(types.OperationBillingFailed, second.Items[0].OperationType)
}

func (s *AuditServiceSuite) TestList_TimeRange() {
	start := s.base.Add(time.Hour)
	end := s.base.Add(2 * time.Hour)
	filter := types.NewBillingOperationLogFilter()
	filter.TimeRangeFilter = &types.TimeRangeFilter{StartTime: &start, EndTime: &end}

	res, err := s.service.List(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Equal(2, res.Total)
}

func (s *AuditServiceSuite) TestList_InvalidFilter() {
	filter := types.NewBillingOperationLogFilter()
	filter.Size = types.FILTER_MAX_LIMIT + 1
	_, err := s.service.List(s.GetContext(), filter)
	s.True(ierr.IsValidation(err))

	filter = types.NewBillingOperationLogFilter()
	filter.Page = -1
	_, err = s.service.List(s.GetContext(), filter)
	s.True(ierr.IsValidation(err))

	filter = types.NewBillingOperationLogFilter()
	filter.SortBy = "actor"
	_, err = s.service.List(s.GetContext(), filter)
	s.True(ierr.IsValidation(err))
}

func (s *AuditServiceSuite) TestExportCSV() {
	filter := types.NewBillingOperationLogFilter()
	filter.TenantID = "tenant_a"
	filter.Size = 1
	filter.Page = 3

	out, err := s.service.ExportCSV(s.GetContext(), filter)
	s.Require().NoError(err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	s.Require().Len(lines, 5)
	s.Equal("id,tenant_id,billing_cycle_id,invoice_id,operation_type,actor,timestamp,details", lines[0])
	for _, line := range lines[1:] {
		s.Contains(line, "tenant_a")
	}
}
