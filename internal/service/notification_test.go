package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/worksphere/billing/internal/domain/billingcycle"
	"github.com/worksphere/billing/internal/domain/invoice"
	"github.com/worksphere/billing/internal/domain/notification"
	"github.com/worksphere/billing/internal/domain/payment"
	"github.com/worksphere/billing/internal/testutil"
	"github.com/worksphere/billing/internal/types"
)

type NotificationServiceSuite struct {
	testutil.BaseServiceTestSuite
	service NotificationService
	cycle   *billingcycle.BillingCycle
	invoice *invoice.Invoice
	result  *payment.Result
}

func TestNotificationService(t *testing.T) {
	suite.Run(t, new(NotificationServiceSuite))
}

func (s *NotificationServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.GetConfig().Billing.Notification.MaxAttempts = 4
	s.service = NewNotificationService(newTestParams(&s.BaseServiceTestSuite))

	start, end := testutil.Date(2026, time.January, 1), testutil.Date(2026, time.January, 31)
	s.CreateSubscription(testutil.TestTenantID, start, end)
	s.cycle = billingcycle.New(s.GetContext(), testutil.TestTenantID, start, end)

	base := types.GetDefaultBaseModel(s.GetContext())
	base.TenantID = testutil.TestTenantID
	s.invoice = &invoice.Invoice{
		ID:             "inv_notify",
		BillingCycleID: s.cycle.ID,
		Currency:       "USD",
		TotalAmount:    testutil.Money("1200"),
		Status:         types.InvoiceStatusPaid,
		BaseModel:      base,
	}
	s.result = &payment.Result{ID: "pay_notify", TransactionID: "tx_notify", Status: types.PaymentStatusSuccess}
}

func (s *NotificationServiceSuite) TestNotifyAfterPayment_RetriesThenSends() {
	s.GetOrchestrator().NotifyFailures = 2

	entry, err := s.service.NotifyAfterPayment(s.GetContext(), s.cycle, s.invoice, s.result)
	s.Require().NoError(err)
	s.Require().NotNil(entry)
	s.Equal(notification.StatusSent, entry.Status)
	s.Equal(3, entry.Attempts)

	notices := s.GetOrchestrator().Notices
	s.Require().Len(notices, 1)
	s.Equal("1200.00", notices[0].Amount)
	s.Equal("tx_notify", notices[0].TransactionID)
	s.Len(s.GetMailer().Sent, 1)
	s.Len(s.GetStores().AuditLogRepo.ByOperation(types.OperationNotification), 1)
}

func (s *NotificationServiceSuite) TestNotifyAfterPayment_SentOnlyOnce() {
	_, err := s.service.NotifyAfterPayment(s.GetContext(), s.cycle, s.invoice, s.result)
	s.Require().NoError(err)

	entry, err := s.service.NotifyAfterPayment(s.GetContext(), s.cycle, s.invoice, s.result)
	s.Require().NoError(err)
	s.Nil(entry)
	s.Equal(1, s.GetOrchestrator().NotifyCalls)
	s.Len(s.GetStores().NotificationRepo.All(), 1)
}

func (s *NotificationServiceSuite) TestNotifyAfterPayment_RecordsFailure() {
	s.GetOrchestrator().NotifyFailures = 100

	entry, err := s.service.NotifyAfterPayment(s.GetContext(), s.cycle, s.invoice, s.result)
	s.Require().NoError(err)
	s.Equal(notification.StatusFailed, entry.Status)
	s.Equal(4, entry.Attempts)
	s.NotEmpty(entry.LastError)

	// a failed notice does not block a later attempt
	s.GetOrchestrator().NotifyFailures = 0
	s.GetOrchestrator().NotifyCalls = 0
	entry, err = s.service.NotifyAfterPayment(s.GetContext(), s.cycle, s.invoice, s.result)
	s.Require().NoError(err)
	s.Equal(notification.StatusSent, entry.Status)
	s.Len(s.GetStores().NotificationRepo.All(), 2)
}

func (s *NotificationServiceSuite) TestNotifyAfterPayment_MailFailureIsIgnored() {
	s.GetMailer().Err = errors.New("smtp down")

	entry, err := s.service.NotifyAfterPayment(s.GetContext(), s.cycle, s.invoice, s.result)
	s.Require().NoError(err)
	s.Equal(notification.StatusSent, entry.Status)
	s.Empty(s.GetMailer().Sent)
}
