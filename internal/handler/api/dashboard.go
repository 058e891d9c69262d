package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"WhaleWatch/internal/domain/models"
	"WhaleWatch/internal/gateway"
	"WhaleWatch/internal/service/marketapi"
	"WhaleWatch/internal/service/ratelimit"
	"WhaleWatch/internal/usecase"
	xhttp "WhaleWatch/pkg/http"
	xlogger "WhaleWatch/pkg/logger"
)

type Dashboard interface {
	Start(ctx context.Context) error
	Snapshot() usecase.Snapshot
	Subscribe(fn func(usecase.Snapshot)) func()
	Refresh(ctx context.Context) (usecase.Snapshot, error)
	AddSymbols(ctx context.Context, raw string) ([]models.SymbolResult, error)
	RemoveSymbol(ctx context.Context, symbol string) error
	AddHolding(ctx context.Context, req models.HoldingRequest) error
	RemoveHolding(ctx context.Context, symbol string) error
	CreateAlert(ctx context.Context, req models.AlertRequest) error
	DeleteAlert(ctx context.Context, id string) error
	Trades(ctx context.Context, symbol string, limit int) ([]map[string]any, error)
	Sparkline(ctx context.Context, symbol string, points int) ([]float64, error)
}

type Auth interface {
	Current() models.Session
	Login(ctx context.Context, creds models.Credentials) (models.Session, error)
	Register(ctx context.Context, creds models.Credentials) (models.Session, error)
	Logout(ctx context.Context) error
	IsAdmin(id *models.Identity) bool
}

// DashboardHandler serves the local JSON API over the dashboard and auth
// use cases.
type DashboardHandler struct {
	logger  *xlogger.Logger
	auth    Auth
	dash    Dashboard
	limiter *ratelimit.Limiter
}

func NewDashboardHandler(logger *xlogger.Logger, auth Auth, dash Dashboard, limiter *ratelimit.Limiter) *DashboardHandler {
	return &DashboardHandler{logger: logger, auth: auth, dash: dash, limiter: limiter}
}

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/session", h.Session)
	g.POST("/session", h.Login, h.rateLimited)
	g.POST("/register", h.Register, h.rateLimited)
	g.DELETE("/session", h.Logout)

	g.GET("/dashboard", h.Dashboard)
	g.POST("/refresh", h.Refresh, h.rateLimited)
	g.GET("/trades/:symbol", h.Trades)
	g.GET("/sparkline/:symbol", h.Sparkline)

	g.POST("/watchlist", h.AddSymbols, h.rateLimited)
	g.DELETE("/watchlist/:symbol", h.RemoveSymbol, h.rateLimited)
	g.POST("/holdings", h.AddHolding, h.rateLimited)
	g.DELETE("/holdings/:symbol", h.RemoveHolding, h.rateLimited)
	g.POST("/alerts", h.CreateAlert, h.rateLimited)
	g.DELETE("/alerts/:id", h.DeleteAlert, h.rateLimited)
}

func (h *DashboardHandler) rateLimited(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("slow down"))
		}
		return next(c)
	}
}

func (h *DashboardHandler) sessionView() models.SessionView {
	s := h.auth.Current()
	return models.SessionView{
		Authenticated: s.Authenticated(),
		User:          s.Identity,
		Admin:         h.auth.IsAdmin(s.Identity),
	}
}

func (h *DashboardHandler) Session(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.sessionView())
}

func (h *DashboardHandler) Login(c echo.Context) error {
	return h.authenticate(c, h.auth.Login)
}

func (h *DashboardHandler) Register(c echo.Context) error {
	return h.authenticate(c, h.auth.Register)
}

func (h *DashboardHandler) authenticate(c echo.Context, fn func(context.Context, models.Credentials) (models.Session, error)) error {
	req := &models.Credentials{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	if _, err := fn(ctx, *req); err != nil {
		return h.fail(c, "authenticate", err)
	}
	// Pollers outlive the request; they stop on logout or shutdown.
	if err := h.dash.Start(context.WithoutCancel(ctx)); err != nil {
		return h.fail(c, "start dashboard", err)
	}
	return xhttp.SuccessResponse(c, h.sessionView())
}

func (h *DashboardHandler) Logout(c echo.Context) error {
	if err := h.auth.Logout(c.Request().Context()); err != nil {
		return h.fail(c, "logout", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *DashboardHandler) Dashboard(c echo.Context) error {
	snap := h.dash.Snapshot()
	if !snap.Authenticated {
		return xhttp.AppErrorResponse(c, xhttp.UnauthorizedError("not signed in"))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, snap)
}

func (h *DashboardHandler) Refresh(c echo.Context) error {
	snap, err := h.dash.Refresh(c.Request().Context())
	if err != nil {
		return h.fail(c, "refresh", err)
	}
	if !snap.Authenticated {
		return h.fail(c, "refresh", gateway.ErrUnauthorized)
	}
	return xhttp.SuccessResponse(c, snap)
}

func (h *DashboardHandler) AddSymbols(c echo.Context) error {
	req := &models.AddSymbolsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	results, err := h.dash.AddSymbols(c.Request().Context(), req.Symbols)
	if err != nil {
		return h.fail(c, "add symbols", err)
	}
	return xhttp.SuccessResponse(c, results)
}

func (h *DashboardHandler) RemoveSymbol(c echo.Context) error {
	if err := h.dash.RemoveSymbol(c.Request().Context(), c.Param("symbol")); err != nil {
		return h.fail(c, "remove symbol", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *DashboardHandler) AddHolding(c echo.Context) error {
	req := &models.HoldingRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.dash.AddHolding(c.Request().Context(), *req); err != nil {
		return h.fail(c, "add holding", err)
	}
	return xhttp.CreatedResponse(c, req)
}

func (h *DashboardHandler) RemoveHolding(c echo.Context) error {
	if err := h.dash.RemoveHolding(c.Request().Context(), c.Param("symbol")); err != nil {
		return h.fail(c, "remove holding", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *DashboardHandler) CreateAlert(c echo.Context) error {
	req := &models.AlertRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.dash.CreateAlert(c.Request().Context(), *req); err != nil {
		return h.fail(c, "create alert", err)
	}
	return xhttp.CreatedResponse(c, req)
}

func (h *DashboardHandler) DeleteAlert(c echo.Context) error {
	if err := h.dash.DeleteAlert(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, "delete alert", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *DashboardHandler) Trades(c echo.Context) error {
	req := &models.SeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	trades, err := h.dash.Trades(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		return h.fail(c, "trades", err)
	}
	return xhttp.SuccessResponse(c, trades)
}

func (h *DashboardHandler) Sparkline(c echo.Context) error {
	req := &models.SparklineRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	series, err := h.dash.Sparkline(c.Request().Context(), req.Symbol, req.Points)
	if err != nil {
		return h.fail(c, "sparkline", err)
	}
	return xhttp.SuccessResponse(c, series)
}

func (h *DashboardHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// toAppError maps use-case and gateway errors onto HTTP statuses. Upstream
// 4xx rejections keep their status and message; everything else from the
// remote API is a bad gateway.
func toAppError(err error) *xhttp.AppError {
	var (
		appErr    *xhttp.AppError
		httpErr   *gateway.HTTPError
		netErr    *gateway.NetworkError
		decodeErr *gateway.DecodeError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, gateway.ErrUnauthorized), errors.Is(err, usecase.ErrNotAuthenticated):
		return xhttp.UnauthorizedError("not signed in").WithError(err)
	case errors.Is(err, usecase.ErrNoSymbols), errors.Is(err, marketapi.ErrEmptySymbol):
		return xhttp.BadRequestError(err.Error())
	case errors.As(err, &httpErr):
		if httpErr.Status >= 400 && httpErr.Status < 500 {
			return xhttp.NewAppError("ERR_REJECTED", httpErr.Message, httpErr.Status)
		}
		return xhttp.UpstreamError(httpErr.Message).WithError(err)
	case errors.As(err, &netErr), errors.As(err, &decodeErr):
		return xhttp.UpstreamError("market api unavailable").WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
