package crm_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/xavierca1/route2rise-console/internal/infra/integration/crm"
	"github.com/xavierca1/route2rise-console/internal/infra/integration/crm/crmtest"
)

func TestClientRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	srv := crmtest.NewServer()
	defer srv.Close()
	client := crm.NewClient(srv.URL, 5*time.Second, nil, nil)

	require.NoError(t, client.Do(context.Background(), "health", http.MethodGet, "/health", nil, nil, nil))
	require.Error(t, client.Do(context.Background(), "list_leads", http.MethodGet, "/leads", nil, nil, nil))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "crm.health", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, "crm.list_leads", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Contains(t, spans[1].Attributes(), attribute.Int("http.response.status_code", http.StatusForbidden))
}
