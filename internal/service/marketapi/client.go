// Package marketapi exposes the remote market API as typed operations. All
// traffic goes through the gateway, which owns credentials and error
// classification.
package marketapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"WhaleWatch/internal/domain/models"
	"WhaleWatch/internal/quotes"
	"WhaleWatch/internal/service/cache"
	"WhaleWatch/pkg/logger"
)

const (
	DefaultTradeLimit      = 60
	DefaultSparklinePoints = 30

	maxCachedSparklines = 512
)

var ErrEmptySymbol = errors.New("symbol is required")

// Caller is implemented by *gateway.Gateway.
type Caller interface {
	Get(ctx context.Context, path string, dest any) error
	Post(ctx context.Context, path string, body, dest any) error
	Delete(ctx context.Context, path string, dest any) error
}

type Client struct {
	gw           Caller
	sparklines   *cache.TTLCache[[]float64]
	sparklineTTL time.Duration
	logger       *logger.Logger
}

type Option func(*Client)

// WithSparklineTTL caches sparkline series for d. Zero disables caching.
func WithSparklineTTL(d time.Duration) Option {
	return func(c *Client) { c.sparklineTTL = d }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(gw Caller, opts ...Option) *Client {
	c := &Client{
		gw:           gw,
		sparklines:   cache.NewTTLCache[[]float64](cache.WithMaxEntries(maxCachedSparklines)),
		sparklineTTL: time.Minute,
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// --- Auth ---

func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", email, password)
}

func (c *Client) Register(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/register", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.gw.Post(ctx, path, body, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" || !resp.User.Valid() {
		return nil, fmt.Errorf("%s: response is missing user or token", path)
	}
	return &resp, nil
}

// Profile returns the identity behind the current credential. The server
// may answer with the identity itself or wrap it in {"user": ...}.
func (c *Client) Profile(ctx context.Context) (*models.Identity, error) {
	var raw json.RawMessage
	if err := c.gw.Get(ctx, "/auth/profile", &raw); err != nil {
		return nil, err
	}

	var wrapped struct {
		User *models.Identity `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil && wrapped.User.Valid() {
		return wrapped.User, nil
	}

	var id models.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if !id.Valid() {
		return nil, errors.New("profile has no identity")
	}
	return &id, nil
}

// --- Watchlist ---

func (c *Client) Watchlist(ctx context.Context) ([]models.WatchlistEntry, error) {
	var out []models.WatchlistEntry
	if err := c.gw.Get(ctx, "/watchlist", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddToWatchlist(ctx context.Context, symbol string) error {
	sym, err := symbolParam(symbol)
	if err != nil {
		return err
	}
	return c.gw.Post(ctx, "/watchlist", map[string]string{"symbol": sym}, nil)
}

func (c *Client) RemoveFromWatchlist(ctx context.Context, symbol string) error {
	sym, err := symbolParam(symbol)
	if err != nil {
		return err
	}
	return c.gw.Delete(ctx, "/watchlist/"+url.PathEscape(sym), nil)
}

// --- Holdings ---

func (c *Client) Holdings(ctx context.Context) ([]models.Holding, error) {
	var out []models.Holding
	if err := c.gw.Get(ctx, "/holdings", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddHolding(ctx context.Context, req models.HoldingRequest) error {
	sym, err := symbolParam(req.Symbol)
	if err != nil {
		return err
	}
	req.Symbol = sym
	return c.gw.Post(ctx, "/holdings", req, nil)
}

func (c *Client) DeleteHolding(ctx context.Context, symbol string) error {
	sym, err := symbolParam(symbol)
	if err != nil {
		return err
	}
	return c.gw.Delete(ctx, "/holdings/"+url.PathEscape(sym), nil)
}

// --- Alerts ---

func (c *Client) Alerts(ctx context.Context) ([]models.Alert, error) {
	var out []models.Alert
	if err := c.gw.Get(ctx, "/alerts", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateAlert(ctx context.Context, req models.AlertRequest) error {
	sym, err := symbolParam(req.Symbol)
	if err != nil {
		return err
	}
	req.Symbol = sym
	return c.gw.Post(ctx, "/alerts", req, nil)
}

func (c *Client) DeleteAlert(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("alert id is required")
	}
	return c.gw.Delete(ctx, "/alerts/"+url.PathEscape(id), nil)
}

// --- Market data ---

// Quotes fetches all quotes and normalizes them, whatever shape the server
// used.
func (c *Client) Quotes(ctx context.Context) (models.QuoteMap, error) {
	var raw any
	if err := c.gw.Get(ctx, "/quotes", &raw); err != nil {
		return nil, err
	}
	return quotes.Normalize(raw), nil
}

// Quote fetches a single symbol. The returned quote may lack a price.
func (c *Client) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	sym, err := symbolParam(symbol)
	if err != nil {
		return models.Quote{}, err
	}

	var raw any
	if err := c.gw.Get(ctx, "/quotes/"+url.PathEscape(sym), &raw); err != nil {
		return models.Quote{}, err
	}

	if obj, ok := raw.(map[string]any); ok {
		if _, has := obj["symbol"]; !has {
			obj["symbol"] = sym
		}
		raw = []any{obj}
	}
	if q, ok := quotes.Normalize(raw)[sym]; ok {
		return q, nil
	}
	return models.Quote{Symbol: sym}, nil
}

// Trades returns recent trades. Their shape is passed through untouched.
func (c *Client) Trades(ctx context.Context, symbol string, limit int) ([]map[string]any, error) {
	sym, err := symbolParam(symbol)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultTradeLimit
	}

	var out []map[string]any
	path := "/trades/" + url.PathEscape(sym) + "?limit=" + strconv.Itoa(limit)
	if err := c.gw.Get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Sparkline returns up to points recent prices for symbol.
func (c *Client) Sparkline(ctx context.Context, symbol string, points int) ([]float64, error) {
	sym, err := symbolParam(symbol)
	if err != nil {
		return nil, err
	}
	if points <= 0 {
		points = DefaultSparklinePoints
	}

	key := sym + ":" + strconv.Itoa(points)
	if c.sparklineTTL > 0 {
		if s, ok := c.sparklines.Get(key); ok {
			return s, nil
		}
	}

	var raw any
	path := "/sparkline/" + url.PathEscape(sym) + "?points=" + strconv.Itoa(points)
	if err := c.gw.Get(ctx, path, &raw); err != nil {
		return nil, err
	}

	series := quotes.Series(raw)
	if c.sparklineTTL > 0 {
		c.sparklines.Set(key, series, c.sparklineTTL)
	}
	return series, nil
}

// Health returns the server's health document.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.gw.Get(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func symbolParam(s string) (string, error) {
	sym := models.NormalizeSymbol(s)
	if sym == "" {
		return "", ErrEmptySymbol
	}
	return sym, nil
}
