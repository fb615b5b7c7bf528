package amadeus

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"hotelsync/internal/adapters/observability"
	"hotelsync/internal/domain"
)

const (
	testBaseURL = "https://test.api.amadeus.com"
	prodBaseURL = "https://api.amadeus.com"

	providerName = "amadeus"
)

type Config struct {
	ClientID     string
	ClientSecret string
	Test         bool
	BaseURL      string // overrides test/prod resolution when set

	BatchSize         int           // max hotel IDs per offers/ratings call
	PacingDelay       time.Duration // spacing between successive calls
	MaxRetries        int
	BackoffBase       time.Duration
	BackoffMultiplier float64
	TokenBuffer       time.Duration // refresh this long before expiry
	CatalogTTL        time.Duration // hotel-list cache lifetime
}

// Client talks to the Amadeus Self-Service APIs: OAuth2 client-credentials
// auth, hotel lists by city/geocode/ID-list, batched hotel offers, and
// batched hotel sentiments. All outbound calls go through a shared pacing
// limiter, a circuit breaker, and a bounded retry loop.
type Client struct {
	cfg   Config
	base  string
	hc    *http.Client
	rl    *rate.Limiter
	cb    *gobreaker.CircuitBreaker
	cache domain.Cache // optional; hotel catalogs only

	mu    sync.Mutex
	token domain.AccessToken

	now func() time.Time
}

func New(cfg Config, cache domain.Cache) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("amadeus: client credentials are required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PacingDelay <= 0 {
		cfg.PacingDelay = 100 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 200 * time.Millisecond
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 2
	}
	if cfg.TokenBuffer <= 0 {
		cfg.TokenBuffer = 5 * time.Minute
	}

	base := cfg.BaseURL
	if base == "" {
		if cfg.Test {
			base = testBaseURL
		} else {
			base = prodBaseURL
		}
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: providerName,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		cfg:  cfg,
		base: base,
		hc: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		rl:    rate.NewLimiter(rate.Every(cfg.PacingDelay), 1),
		cb:    cb,
		cache: cache,
		now:   time.Now,
	}, nil
}

func (c *Client) Name() string { return providerName }

// Authenticate returns the cached token while it is still usable, and
// performs the client-credentials exchange otherwise.
func (c *Client) Authenticate(ctx context.Context) (domain.AccessToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token.State(now, c.cfg.TokenBuffer) == domain.TokenValid {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	}
	var tr tokenResponse
	if err := c.postForm(ctx, "/v1/security/oauth2/token", form, "oauth2-token", &tr); err != nil {
		return domain.AccessToken{}, fmt.Errorf("%w: %v", domain.ErrAuth, err)
	}
	if tr.AccessToken == "" {
		return domain.AccessToken{}, fmt.Errorf("%w: token response missing access_token", domain.ErrAuth)
	}

	ttl := tr.ExpiresIn
	if ttl <= 0 {
		ttl = 3600
	}
	typ := tr.TokenType
	if typ == "" {
		typ = "Bearer"
	}
	c.token = domain.AccessToken{
		Token:     tr.AccessToken,
		Type:      typ,
		ExpiresAt: now.Add(time.Duration(ttl) * time.Second),
	}
	return c.token, nil
}

// ListHotels fetches the hotel catalog for the scope. Catalogs change
// slowly, so results go through the optional cache; offers never do.
func (c *Client) ListHotels(ctx context.Context, scope domain.Scope) ([]domain.HotelRecord, error) {
	if scope.IsZero() {
		return nil, nil
	}

	cacheKey := "amadeus:hotels:" + scope.CacheKey()
	if c.cache != nil && c.cfg.CatalogTTL > 0 {
		var cached []domain.HotelRecord
		if ok, _ := c.cache.Get(ctx, cacheKey, &cached); ok {
			return cached, nil
		}
	}

	tok, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	var resp hotelListResponse
	switch {
	case scope.CityCode != "":
		q := url.Values{
			"cityCode":   {scope.CityCode},
			"radius":     {"50"},
			"radiusUnit": {"KM"},
		}
		err = c.getJSON(ctx, "/v1/reference-data/locations/hotels/by-city", q, tok, "hotels-by-city", &resp)
	case scope.Geo != nil:
		radius := scope.RadiusKM
		if radius <= 0 {
			radius = 50
		}
		q := url.Values{
			"latitude":   {strconv.FormatFloat(scope.Geo.Latitude, 'f', -1, 64)},
			"longitude":  {strconv.FormatFloat(scope.Geo.Longitude, 'f', -1, 64)},
			"radius":     {strconv.Itoa(radius)},
			"radiusUnit": {"KM"},
		}
		err = c.getJSON(ctx, "/v1/reference-data/locations/hotels/by-geocode", q, tok, "hotels-by-geocode", &resp)
	case len(scope.HotelIDs) > 0:
		q := url.Values{"hotelIds": {strings.Join(scope.HotelIDs, ",")}}
		err = c.getJSON(ctx, "/v1/reference-data/locations/hotels/by-hotels", q, tok, "hotels-by-hotels", &resp)
	}
	if err != nil {
		return nil, err
	}

	hotels := parseHotels(resp)
	if c.cache != nil && c.cfg.CatalogTTL > 0 {
		_ = c.cache.Set(ctx, cacheKey, hotels, int(c.cfg.CatalogTTL.Seconds()))
	}
	return hotels, nil
}

// ListOffers fetches offers for the hotel IDs, batched at the configured
// maximum per call. A failed batch doesn't abort the rest; partial results
// come back together with the joined batch errors.
func (c *Client) ListOffers(ctx context.Context, hotelExternalIDs []string, params domain.SearchParams) ([]domain.OfferRecord, error) {
	if len(hotelExternalIDs) == 0 {
		return nil, nil
	}
	tok, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	adults := params.Adults
	if adults <= 0 {
		adults = 2
	}
	rooms := params.Rooms
	if rooms <= 0 {
		rooms = 1
	}

	var (
		out  []domain.OfferRecord
		errs []error
	)
	for _, batch := range chunk(hotelExternalIDs, c.cfg.BatchSize) {
		q := url.Values{
			"hotelIds":     {strings.Join(batch, ",")},
			"adults":       {strconv.Itoa(adults)},
			"roomQuantity": {strconv.Itoa(rooms)},
			"checkInDate":  {params.CheckIn},
		}
		if params.CheckOut != "" {
			q.Set("checkOutDate", params.CheckOut)
		}

		var resp offersResponse
		if err := c.getJSON(ctx, "/v3/shopping/hotel-offers", q, tok, "hotel-offers", &resp); err != nil {
			errs = append(errs, fmt.Errorf("offers batch of %d: %w", len(batch), err))
			continue
		}
		out = append(out, parseOffers(resp)...)
	}
	return out, errors.Join(errs...)
}

// Ratings fetches sentiment ratings for the hotel IDs with the same
// batching and pacing discipline as ListOffers.
func (c *Client) Ratings(ctx context.Context, hotelExternalIDs []string) ([]domain.RatingRecord, error) {
	if len(hotelExternalIDs) == 0 {
		return nil, nil
	}
	tok, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	var (
		out  []domain.RatingRecord
		errs []error
	)
	for _, batch := range chunk(hotelExternalIDs, c.cfg.BatchSize) {
		q := url.Values{"hotelIds": {strings.Join(batch, ",")}}

		var resp sentimentsResponse
		if err := c.getJSON(ctx, "/v2/e-reputation/hotel-sentiments", q, tok, "hotel-sentiments", &resp); err != nil {
			errs = append(errs, fmt.Errorf("ratings batch of %d: %w", len(batch), err))
			continue
		}
		out = append(out, parseRatings(resp)...)
	}
	return out, errors.Join(errs...)
}

// ---- transport internals ----

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, tok domain.AccessToken, endpoint string, out any) error {
	build := func() (*http.Request, error) {
		u := c.base + path
		if len(q) > 0 {
			u += "?" + q.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", tok.Type+" "+tok.Token)
		return req, nil
	}
	return c.do(ctx, build, endpoint, out)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, endpoint string, out any) error {
	body := form.Encode()
	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}
	return c.do(ctx, build, endpoint, out)
}

// do performs one logical call with pacing, circuit breaking, and a retry
// loop bounded by MaxRetries. Retries on network errors, 429 and transient
// 5xx, honoring Retry-After when provided.
func (c *Client) do(ctx context.Context, build func() (*http.Request, error), endpoint string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		// fresh request each attempt
		req, err := build()
		if err != nil {
			return err
		}

		start := time.Now()
		res, err := c.cb.Execute(func() (any, error) {
			return c.hc.Do(req)
		})
		if err != nil {
			// network error, breaker open, or context canceled
			if ctx.Err() != nil {
				return ctx.Err()
			}
			observability.ObserveExternal(providerName, endpoint, 0, time.Since(start))
			lastErr = err
			if attempt < c.cfg.MaxRetries && sleepCtx(ctx, c.backoff(attempt)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		resp := res.(*http.Response)
		observability.ObserveExternal(providerName, endpoint, resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("%w: %s: %v", domain.ErrMalformedResponse, endpoint, err)
			}
			return nil

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = c.backoff(attempt)
			}
			lastErr = fmt.Errorf("amadeus: %s returned %d", endpoint, resp.StatusCode)
			if attempt < c.cfg.MaxRetries && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			// read a small error body for diagnostics
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("amadeus: %s returned %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return lastErr
}

// backoff returns BackoffBase * BackoffMultiplier^attempt with up to +50%
// jitter.
func (c *Client) backoff(attempt int) time.Duration {
	base := time.Duration(float64(c.cfg.BackoffBase) * math.Pow(c.cfg.BackoffMultiplier, float64(attempt)))
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if
// absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func chunk(ids []string, size int) [][]string {
	out := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
