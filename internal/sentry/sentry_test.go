package sentry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worksphere/billing/internal/testutil"
)

func TestDisabledServiceIsNoop(t *testing.T) {
	svc, err := NewSentryService(testutil.NewTestConfig(), testutil.NewTestLogger())
	require.NoError(t, err)
	assert.False(t, svc.IsEnabled())

	svc.CaptureException(context.Background(), errors.New("boom"), map[string]string{"stage": "pay"})
	span, ctx := svc.StartSpan(context.Background(), "billing.saga", nil)
	assert.Nil(t, span)
	assert.NotNil(t, ctx)
	FinishSpan(span, nil)
}

func TestNilServiceIsNoop(t *testing.T) {
	var svc *Service
	assert.False(t, svc.IsEnabled())
	svc.CaptureException(context.Background(), errors.New("boom"), nil)
}
