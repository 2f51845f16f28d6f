package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xavierca1/route2rise-console/internal/infra/http/middleware"
	"github.com/xavierca1/route2rise-console/internal/infra/storage"
)

// Client talks to the CRM REST API. When its store holds an access
// token the token is sent as a bearer credential.
type Client struct {
	baseURL string
	http    *http.Client
	store   storage.Store
	logger  *zap.Logger
}

// NewClient builds a client. A zero timeout leaves the transport
// defaults in charge.
func NewClient(baseURL string, timeout time.Duration, store storage.Store, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		store:   store,
		logger:  logger,
	}
}

// WithStore returns a copy reading the token from another store.
func (c *Client) WithStore(store storage.Store) *Client {
	cp := *c
	cp.store = store
	return &cp
}

// Store exposes the storage the client reads its credential from.
func (c *Client) Store() storage.Store {
	return c.store
}

// Do sends one request and decodes a 2xx body into out (when non-nil).
// op labels the call in metrics, traces and logs.
func (c *Client) Do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	ctx, span := otel.Tracer("route2rise/crm").Start(ctx, "crm."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	err := c.do(ctx, method, path, query, body, out)

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		span.SetAttributes(attribute.Int("http.response.status_code", apiErr.StatusCode))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome(err))
	}
	middleware.RecordAPICall(op, outcome(err))
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if err := c.setHeaders(ctx, req, body != nil); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Method: method, Path: path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Detail:     detail(raw),
		}
		c.logger.Debug("crm request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", apiErr.Detail),
		)
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) setHeaders(ctx context.Context, req *http.Request, hasBody bool) error {
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.store == nil {
		return nil
	}

	token, ok, err := c.store.Get(ctx, storage.AccessTokenKey)
	if err != nil {
		return fmt.Errorf("read access token: %w", err)
	}
	if ok && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// detail extracts the backend's error message. FastAPI answers with
// {"detail": "..."}; validation failures carry a list instead.
func detail(raw []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Detail) == 0 {
		return strings.TrimSpace(string(raw))
	}

	var msg string
	if err := json.Unmarshal(payload.Detail, &msg); err == nil {
		return msg
	}
	return string(payload.Detail)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsTransport(err):
		return "transport_error"
	default:
		return "rejected"
	}
}

// Health probes the backend's /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.Do(ctx, "health", http.MethodGet, "/health", nil, nil, nil)
}
