package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestObserveBeforeInitIsNoop(t *testing.T) {
	if quoteTotal != nil {
		t.Skip("metrics already initialised in this process")
	}
	IncQuote(QuoteResultPriced)
	ObserveBillGenerate(ResultSuccess, time.Second)
	AddBillsOverdue(3)
}

func TestCountersAfterInit(t *testing.T) {
	Init(nil, zap.NewNop())

	before := testutil.ToFloat64(quoteTotal.WithLabelValues(QuoteResultUnpriced))
	IncQuote(QuoteResultUnpriced)
	require.Equal(t, before+1, testutil.ToFloat64(quoteTotal.WithLabelValues(QuoteResultUnpriced)))

	skipped := testutil.ToFloat64(billSkippedTotal.WithLabelValues("no_rate"))
	IncBillSkipped("no_rate")
	require.Equal(t, skipped+1, testutil.ToFloat64(billSkippedTotal.WithLabelValues("no_rate")))

	overdue := testutil.ToFloat64(billOverdueTotal)
	AddBillsOverdue(0)
	AddBillsOverdue(2)
	require.Equal(t, overdue+2, testutil.ToFloat64(billOverdueTotal))

	Init(nil, zap.NewNop())
}
