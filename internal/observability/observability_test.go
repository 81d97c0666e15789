package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ExtractCorrelationID(ctx))

	ctx = EnsureCorrelationID(ctx)
	id := ExtractCorrelationID(ctx)
	require.NotEmpty(t, id)

	assert.Equal(t, id, ExtractCorrelationID(EnsureCorrelationID(ctx)), "existing id must be preserved")
	assert.NotEqual(t, GenerateCorrelationID(), GenerateCorrelationID())
}

func TestLogDriftCountsStep(t *testing.T) {
	before := testutil.ToFloat64(ConsistencyDrift.WithLabelValues("test_step"))
	LogDrift(context.Background(), "test_step", errors.New("boom"), map[string]interface{}{"post_id": 1})
	LogDrift(context.Background(), "test_step", nil, nil)
	assert.Equal(t, before+2, testutil.ToFloat64(ConsistencyDrift.WithLabelValues("test_step")))
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "inkwell-test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	span, ctx := StartServiceSpan(context.Background(), "CommentService", "CreateComment")
	assert.NotNil(t, ctx)
	span.SetError(errors.New("ignored"))
	span.End()
}
