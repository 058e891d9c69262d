package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	xhttp "WhaleWatch/pkg/http"
	"WhaleWatch/pkg/http/mocks"
)

type fakeSession struct {
	mu     sync.Mutex
	token  string
	clears int
}

func (f *fakeSession) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeSession) Clear(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.clears++
	return nil
}

func (f *fakeSession) clearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}

func newTestGateway(t *testing.T, handler http.HandlerFunc, sess Session, opts ...Option) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/", sess, opts...)
}

func TestGateway_AttachesCredentialAndDecodes(t *testing.T) {
	sess := &fakeSession{token: "tok-123"}
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/watchlist", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get(HeaderRequestID))
		_, _ = w.Write([]byte(`["AAPL","TSLA"]`))
	}, sess)

	var got []string
	require.NoError(t, gw.Get(context.Background(), "/watchlist", &got))
	assert.Equal(t, []string{"AAPL", "TSLA"}, got)
}

func TestGateway_NoCredentialNoHeader(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}, &fakeSession{})

	var got map[string]string
	require.NoError(t, gw.Get(context.Background(), "/health", &got))
	assert.Equal(t, "ok", got["status"])
}

func TestGateway_EncodesBody(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "NVDA", body["symbol"])
		_, _ = w.Write([]byte(`{"ok":true}`))
	}, &fakeSession{token: "t"})

	require.NoError(t, gw.Post(context.Background(), "/watchlist", map[string]string{"symbol": "NVDA"}, nil))
}

func TestGateway_UnauthorizedClearsSessionOnce(t *testing.T) {
	sess := &fakeSession{token: "stale"}
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"token expired"}`))
	}, sess)

	var got []string
	err := gw.Get(context.Background(), "/holdings", &got)

	require.ErrorIs(t, err, ErrUnauthorized)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, 1, sess.clearCount())
	assert.Empty(t, sess.Token())
	assert.Nil(t, got)
}

func TestGateway_HTTPErrorMessage(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "error field", status: 400, body: `{"error":"symbol required","message":"ignored"}`, want: "symbol required"},
		{name: "message field", status: 409, body: `{"message":"already on watchlist"}`, want: "already on watchlist"},
		{name: "non-json body", status: 502, body: `<html>bad gateway</html>`, want: "HTTP 502"},
		{name: "empty body", status: 500, body: ``, want: "HTTP 500"},
		{name: "non-string error", status: 422, body: `{"error":{"code":1}}`, want: "HTTP 422"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &fakeSession{token: "t"}
			gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, sess)

			err := gw.Get(context.Background(), "/alerts", &[]any{})

			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.status, httpErr.Status)
			assert.Equal(t, tt.want, httpErr.Error())
			assert.Zero(t, sess.clearCount())
		})
	}
}

func TestGateway_DecodeFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		dest    any
		wantErr bool
	}{
		{name: "empty 200 with dest", status: 200, body: "", dest: &[]string{}, wantErr: true},
		{name: "empty 200 without dest", status: 200, body: "", dest: nil, wantErr: true},
		{name: "invalid json", status: 200, body: "{not json", dest: &map[string]any{}, wantErr: true},
		{name: "invalid json without dest", status: 200, body: "oops", dest: nil, wantErr: true},
		{name: "wrong shape", status: 200, body: `{"a":1}`, dest: &[]string{}, wantErr: true},
		{name: "null body", status: 200, body: "null", dest: &[]string{}, wantErr: true},
		{name: "null body with whitespace", status: 200, body: " null\n", dest: &map[string]any{}, wantErr: true},
		{name: "null body without dest", status: 200, body: "null", dest: nil, wantErr: false},
		{name: "204 without dest", status: 204, body: "", dest: nil, wantErr: false},
		{name: "204 with dest", status: 204, body: "", dest: &[]string{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, &fakeSession{})

			err := gw.Call(context.Background(), http.MethodDelete, "/alerts/a1", nil, tt.dest)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var decodeErr *DecodeError
			assert.True(t, errors.As(err, &decodeErr), "got %v", err)
		})
	}
}

func TestGateway_NetworkErrorFromDoer(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)
	doer.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "https://api.example.test/quotes", req.URL.String())
			return nil, errors.New("connection refused")
		})

	sess := &fakeSession{token: "t"}
	gw := New("https://api.example.test", sess, WithClient(xhttp.NewClient(xhttp.WithDoer(doer))))

	err := gw.Get(context.Background(), "/quotes", &map[string]any{})

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Zero(t, sess.clearCount())
}

func TestGateway_UnauthorizedFromDoer(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).Return(&http.Response{
		StatusCode: http.StatusUnauthorized,
		Body:       io.NopCloser(strings.NewReader(`{}`)),
	}, nil).Times(2)

	sess := &fakeSession{token: "t"}
	gw := New("https://api.example.test", sess, WithClient(xhttp.NewClient(xhttp.WithDoer(doer))))

	assert.ErrorIs(t, gw.Get(context.Background(), "/quotes", nil), ErrUnauthorized)
	assert.ErrorIs(t, gw.Get(context.Background(), "/alerts", nil), ErrUnauthorized)
	assert.Equal(t, 2, sess.clearCount(), "each rejected call clears once")
}

func TestGateway_RateLimitHonoursContext(t *testing.T) {
	calls := 0
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{}`))
	}, &fakeSession{}, WithRateLimit(0.001, 1))

	require.NoError(t, gw.Get(context.Background(), "/health", nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := gw.Get(ctx, "/health", nil)

	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
	assert.Equal(t, 1, calls)
}

func TestOperation(t *testing.T) {
	assert.Equal(t, "get_quotes", operation("GET", "/quotes/AAPL"))
	assert.Equal(t, "post_auth_login", operation("POST", "/auth/login"))
	assert.Equal(t, "get_trades", operation("GET", "/trades/TSLA?limit=60"))
	assert.Equal(t, "get_root", operation("GET", "/"))
}
