package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"WhaleWatch/internal/domain/repository"
	xhttp "WhaleWatch/pkg/http"
	"WhaleWatch/pkg/logger"
)

const (
	HeaderRequestID = "X-Request-ID"
	maxBodyBytes    = 8 << 20
)

// Session is the part of the session store the gateway needs.
type Session interface {
	Token() string
	Clear(ctx context.Context, reason string) error
}

// Gateway is the single path through which the client talks to the remote
// API. It attaches the credential, classifies failures, and tears the
// session down when the server rejects it.
type Gateway struct {
	baseURL string
	client  *xhttp.Client
	session Session
	limiter *rate.Limiter
	logger  *logger.Logger
	metrics repository.Metrics
}

type Option func(*Gateway)

func WithClient(c *xhttp.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithRateLimit throttles outgoing calls. rps <= 0 disables the limiter.
func WithRateLimit(rps float64, burst int) Option {
	return func(g *Gateway) {
		if rps <= 0 {
			g.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

func WithMetrics(m repository.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

func New(baseURL string, session Session, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		logger:  logger.Nop(),
		metrics: repository.NopMetrics{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.client == nil {
		g.client = xhttp.NewClient()
	}
	return g
}

func (g *Gateway) Get(ctx context.Context, path string, dest any) error {
	return g.Call(ctx, http.MethodGet, path, nil, dest)
}

func (g *Gateway) Post(ctx context.Context, path string, body, dest any) error {
	return g.Call(ctx, http.MethodPost, path, body, dest)
}

func (g *Gateway) Delete(ctx context.Context, path string, dest any) error {
	return g.Call(ctx, http.MethodDelete, path, nil, dest)
}

// Call performs one request and decodes the JSON response into dest.
//
// A nil dest discards the payload, but the body must still be valid JSON
// unless the server answered 204 No Content.
func (g *Gateway) Call(ctx context.Context, method, path string, body, dest any) error {
	op := operation(method, path)
	start := time.Now()

	err := g.call(ctx, method, path, body, dest)

	g.metrics.RecordRequest(op, outcome(err), time.Since(start).Seconds())
	return err
}

func (g *Gateway) call(ctx context.Context, method, path string, body, dest any) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return &NetworkError{Method: method, Path: path, Err: err}
		}
	}

	reqID := uuid.NewString()
	headers := map[string]string{
		"Content-Type":  xhttp.ContentTypeJSON,
		"Accept":        xhttp.ContentTypeJSON,
		HeaderRequestID: reqID,
	}
	if token := g.session.Token(); token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	resp, err := g.client.SendRequest(ctx, &xhttp.RequestOptions{
		Method:  method,
		URL:     g.baseURL + path,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		var buildErr *xhttp.BuildError
		if errors.As(err, &buildErr) {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		g.logger.Debug("request failed",
			logger.String("method", method),
			logger.String("path", path),
			logger.String("request_id", reqID),
			logger.Error(err),
		)
		return &NetworkError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &NetworkError{Method: method, Path: path, Err: fmt.Errorf("read body: %w", err)}
	}

	g.logger.Debug("request completed",
		logger.String("method", method),
		logger.String("path", path),
		logger.String("request_id", reqID),
		logger.Int("status", resp.StatusCode),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		g.logger.Warn("credential rejected, clearing session",
			logger.String("method", method),
			logger.String("path", path),
		)
		// the session must be gone even if the caller's context is done
		if err := g.session.Clear(context.WithoutCancel(ctx), "unauthorized"); err != nil {
			g.logger.Error("session clear failed", logger.Error(err))
		}
		return ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Status: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
	}

	return decode(resp.StatusCode, raw, dest)
}

func decode(status int, raw []byte, dest any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		if dest == nil && status == http.StatusNoContent {
			return nil
		}
		return &DecodeError{Status: status, Err: ErrEmptyBody}
	}

	if dest == nil {
		if !json.Valid(trimmed) {
			return &DecodeError{Status: status, Err: errors.New("invalid JSON")}
		}
		return nil
	}

	// a bare null would leave dest zeroed and look like a real result
	if bytes.Equal(trimmed, []byte("null")) {
		return &DecodeError{Status: status, Err: ErrEmptyBody}
	}
	if err := json.Unmarshal(trimmed, dest); err != nil {
		return &DecodeError{Status: status, Err: err}
	}
	return nil
}

// errorMessage prefers the body's "error" field, then "message".
func errorMessage(raw []byte, status int) string {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, key := range []string{"error", "message"} {
			if s, ok := body[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}

// operation builds a low-cardinality metrics label from the route, dropping
// path parameters: "GET /quotes/AAPL" becomes "get_quotes".
func operation(method, path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	name := segs[0]
	if name == "auth" && len(segs) > 1 {
		name += "_" + segs[1]
	}
	if name == "" {
		name = "root"
	}
	return strings.ToLower(method) + "_" + name
}
