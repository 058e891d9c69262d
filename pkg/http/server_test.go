package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WhaleWatch/pkg/logger"
)

type probeRequest struct {
	Symbol string `json:"symbol" validate:"required,max=5"`
	Points int    `json:"points" default:"30" validate:"gte=2"`
}

type probeHandler struct{}

func (probeHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/probe", func(c echo.Context) error {
		req := &probeRequest{}
		if verr := ReadAndValidateRequest(c, req); verr != nil {
			return BadRequestResponse(c, verr)
		}
		return SuccessResponse(c, req)
	})
	e.GET("/teapot", func(c echo.Context) error {
		return AppErrorResponse(c, UpstreamError("market api down"))
	})
	e.GET("/panic", func(c echo.Context) error {
		panic("boom")
	})
}

func newTestServer() *Server {
	return NewServer(logger.Nop(), []Handler{probeHandler{}},
		WithMetrics(prometheus.NewRegistry(), "/metrics"),
		WithCORS("http://localhost:5173"),
	)
}

func serve(s *Server, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestServer_ValidationAndDefaults(t *testing.T) {
	s := newTestServer()

	rec := serve(s, http.MethodPost, "/probe", `{"symbol":"TSLA"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":200,"message":"OK","data":{"symbol":"TSLA","points":30}}`, rec.Body.String())

	rec = serve(s, http.MethodPost, "/probe", `{"symbol":"TOOLONG","points":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"symbol"`)
	assert.Contains(t, rec.Body.String(), `"code":"ERR_MAX"`)
	assert.Contains(t, rec.Body.String(), `points must be 2 or more`)

	rec = serve(s, http.MethodPost, "/probe", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_MALFORMED")
}

func TestServer_AppErrorStatus(t *testing.T) {
	rec := serve(newTestServer(), http.MethodGet, "/teapot", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"ERR_UPSTREAM"`)
}

func TestServer_RecoversPanics(t *testing.T) {
	s := newTestServer()
	rec := serve(s, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `whalewatch_http_requests_total{method="GET",route="/panic",status="500"} 1`)
}

func TestServer_CORS(t *testing.T) {
	s := newTestServer()

	rec := serve(s, http.MethodOptions, "/probe", "", echo.HeaderOrigin, "http://localhost:5173")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	rec = serve(s, http.MethodGet, "/teapot", "", echo.HeaderOrigin, "http://evil.example")
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
