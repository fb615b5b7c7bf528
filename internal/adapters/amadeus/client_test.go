package amadeus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"hotelsync/internal/domain"
)

func testConfig(baseURL string) Config {
	return Config{
		ClientID:     "id",
		ClientSecret: "secret",
		BaseURL:      baseURL,
		BatchSize:    50,
		PacingDelay:  time.Millisecond,
		MaxRetries:   3,
		BackoffBase:  time.Millisecond,
		TokenBuffer:  5 * time.Minute,
	}
}

func newTestClient(t *testing.T, baseURL string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := testConfig(baseURL)
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// tokenHandler answers the oauth2 endpoint, numbering tokens so tests can
// tell a cached token from a refreshed one.
type tokenHandler struct {
	mu    sync.Mutex
	calls int
}

func (h *tokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.calls++
	n := h.calls
	h.mu.Unlock()

	if r.Method != http.MethodPost {
		http.Error(w, "method", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil || r.PostFormValue("grant_type") != "client_credentials" {
		http.Error(w, "bad grant", http.StatusBadRequest)
		return
	}
	fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":1800,"token_type":"Bearer"}`, n)
}

func (h *tokenHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func TestAuthenticateTokenLifecycle(t *testing.T) {
	th := &tokenHandler{}
	mux := http.NewServeMux()
	mux.Handle("/v1/security/oauth2/token", th)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := newTestClient(t, ts.URL, nil)
	cur := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return cur }

	ctx := context.Background()
	tok, err := c.Authenticate(ctx)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if tok.Token != "tok-1" || tok.Type != "Bearer" {
		t.Fatalf("unexpected token %+v", tok)
	}
	if want := cur.Add(1800 * time.Second); !tok.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", tok.ExpiresAt, want)
	}

	// still valid: served from memory, no second exchange
	tok, err = c.Authenticate(ctx)
	if err != nil {
		t.Fatalf("Authenticate cached: %v", err)
	}
	if tok.Token != "tok-1" || th.count() != 1 {
		t.Fatalf("expected cached token, got %q after %d calls", tok.Token, th.count())
	}

	// inside the refresh buffer (1800s ttl - 300s buffer = 1500s): refresh
	cur = cur.Add(1501 * time.Second)
	tok, err = c.Authenticate(ctx)
	if err != nil {
		t.Fatalf("Authenticate refresh: %v", err)
	}
	if tok.Token != "tok-2" || th.count() != 2 {
		t.Fatalf("expected refreshed token, got %q after %d calls", tok.Token, th.count())
	}
}

func TestAuthenticateRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, nil)
	_, err := c.Authenticate(context.Background())
	if !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestAuthenticateMissingAccessToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"token_type":"Bearer"}`)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, nil)
	_, err := c.Authenticate(context.Background())
	if !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestListHotelsByCity(t *testing.T) {
	th := &tokenHandler{}
	mux := http.NewServeMux()
	mux.Handle("/v1/security/oauth2/token", th)
	mux.HandleFunc("/v1/reference-data/locations/hotels/by-city", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("cityCode"); got != "BER" {
			t.Errorf("cityCode = %q", got)
		}
		if auth := r.Header.Get("Authorization"); !strings.HasPrefix(auth, "Bearer tok-") {
			t.Errorf("Authorization = %q", auth)
		}
		fmt.Fprint(w, `{"data":[
			{"hotelId":"HLBER001","name":"GRAND HOTEL","address":{"lines":["Unter den Linden 1"],"cityName":"BERLIN","postalCode":"10117","countryCode":"DE"},"rating":"4.5"},
			{"hotelId":"HLBER002","name":"PARK INN","address":{"addressLine":"Alexanderplatz 7","cityName":"BERLIN","countryCode":"DE"},"geoCode":{"latitude":52.52,"longitude":13.41}}
		]}`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := newTestClient(t, ts.URL, nil)
	hotels, err := c.ListHotels(context.Background(), domain.Scope{CityCode: "BER"})
	if err != nil {
		t.Fatalf("ListHotels: %v", err)
	}
	if len(hotels) != 2 {
		t.Fatalf("got %d hotels, want 2", len(hotels))
	}

	h := hotels[0]
	if h.ExternalID != "HLBER001" || h.Name != "GRAND HOTEL" {
		t.Fatalf("unexpected first hotel %+v", h)
	}
	if h.Address.Line != "Unter den Linden 1" || h.Address.CountryCode != "DE" {
		t.Fatalf("unexpected address %+v", h.Address)
	}
	if h.Rating == nil || *h.Rating != 4.5 {
		t.Fatalf("string rating not parsed: %+v", h.Rating)
	}

	if hotels[1].Address.Line != "Alexanderplatz 7" {
		t.Fatalf("addressLine fallback not used: %+v", hotels[1].Address)
	}
	if hotels[1].Geo == nil || hotels[1].Geo.Latitude != 52.52 {
		t.Fatalf("geoCode not parsed: %+v", hotels[1].Geo)
	}
}

func TestListHotelsZeroScope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call to %s", r.URL.Path)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, nil)
	hotels, err := c.ListHotels(context.Background(), domain.Scope{})
	if err != nil || hotels != nil {
		t.Fatalf("zero scope: hotels=%v err=%v", hotels, err)
	}
}

func TestListOffersBatching(t *testing.T) {
	th := &tokenHandler{}
	var (
		mu      sync.Mutex
		batches []int
	)
	mux := http.NewServeMux()
	mux.Handle("/v1/security/oauth2/token", th)
	mux.HandleFunc("/v3/shopping/hotel-offers", func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("hotelIds"), ",")
		mu.Lock()
		batches = append(batches, len(ids))
		mu.Unlock()

		if got := r.URL.Query().Get("adults"); got != "2" {
			t.Errorf("adults = %q", got)
		}
		fmt.Fprintf(w, `{"data":[{"hotel":{"hotelId":"%s"},"offers":[
			{"id":"OFF-%s","checkInDate":"2025-10-15","checkOutDate":"2025-10-17",
			 "room":{"type":"A1K","description":{"text":"King bed"}},
			 "price":{"currency":"EUR","total":"180.50"}}
		]}]}`, ids[0], ids[0])
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := newTestClient(t, ts.URL, nil)
	ids := make([]string, 120)
	for i := range ids {
		ids[i] = fmt.Sprintf("HL%03d", i)
	}

	offers, err := c.ListOffers(context.Background(), ids, domain.SearchParams{CheckIn: "2025-10-15", Adults: 2, Rooms: 1})
	if err != nil {
		t.Fatalf("ListOffers: %v", err)
	}
	if want := []int{50, 50, 20}; len(batches) != 3 || batches[0] != want[0] || batches[1] != want[1] || batches[2] != want[2] {
		t.Fatalf("batch sizes = %v, want %v", batches, want)
	}
	if len(offers) != 3 {
		t.Fatalf("got %d offers, want 3", len(offers))
	}
	if offers[0].Price != 180.50 || offers[0].Currency != "EUR" {
		t.Fatalf("unexpected offer %+v", offers[0])
	}
}

func TestListOffersPartialBatchFailure(t *testing.T) {
	th := &tokenHandler{}
	mux := http.NewServeMux()
	mux.Handle("/v1/security/oauth2/token", th)
	mux.HandleFunc("/v3/shopping/hotel-offers", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("hotelIds")
		if id == "HL-BAD" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"data":[{"hotel":{"hotelId":"%s"},"offers":[
			{"id":"OFF-%s","checkInDate":"2025-10-15","checkOutDate":"2025-10-17",
			 "room":{"type":"A1K"},"price":{"currency":"EUR","total":100}}
		]}]}`, id, id)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := newTestClient(t, ts.URL, func(cfg *Config) {
		cfg.BatchSize = 1
		cfg.MaxRetries = 0
	})

	offers, err := c.ListOffers(context.Background(), []string{"HL-A", "HL-BAD", "HL-B"},
		domain.SearchParams{CheckIn: "2025-10-15"})
	if err == nil || !strings.Contains(err.Error(), "offers batch of 1") {
		t.Fatalf("expected joined batch error, got %v", err)
	}
	// the two good batches still came back
	if len(offers) != 2 {
		t.Fatalf("got %d offers, want 2", len(offers))
	}
	for _, o := range offers {
		if o.HotelExternalID == "HL-BAD" {
			t.Fatalf("failed batch leaked into results")
		}
	}
}

func TestDoRetriesTransientFailures(t *testing.T) {
	th := &tokenHandler{}
	var (
		mu    sync.Mutex
		calls int
	)
	mux := http.NewServeMux()
	mux.Handle("/v1/security/oauth2/token", th)
	mux.HandleFunc("/v2/e-reputation/hotel-sentiments", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n <= 2 {
			w.Header().Set("Retry-After", "0")
			http.Error(w, "throttled", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"data":[{"hotelId":"HLBER001","overallRating":92,"numberOfReviews":218,
			"sentiments":{"staff":95,"location":89}}]}`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := newTestClient(t, ts.URL, nil)
	ratings, err := c.Ratings(context.Background(), []string{"HLBER001"})
	if err != nil {
		t.Fatalf("Ratings: %v", err)
	}
	mu.Lock()
	n := calls
	mu.Unlock()
	if n != 3 {
		t.Fatalf("expected 2 retries then success, got %d calls", n)
	}
	if len(ratings) != 1 {
		t.Fatalf("got %d ratings, want 1", len(ratings))
	}
	r := ratings[0]
	if r.HotelExternalID != "HLBER001" || r.OverallRating != 92 {
		t.Fatalf("unexpected rating %+v", r)
	}
	if r.ReviewCount == nil || *r.ReviewCount != 218 {
		t.Fatalf("review count not parsed: %+v", r.ReviewCount)
	}
	if r.CategoryRatings["staff"] != 95 {
		t.Fatalf("category ratings not parsed: %+v", r.CategoryRatings)
	}
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	th := &tokenHandler{}
	var (
		mu    sync.Mutex
		calls int
	)
	mux := http.NewServeMux()
	mux.Handle("/v1/security/oauth2/token", th)
	mux.HandleFunc("/v2/e-reputation/hotel-sentiments", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := newTestClient(t, ts.URL, func(cfg *Config) { cfg.MaxRetries = 2 })
	_, err := c.Ratings(context.Background(), []string{"HLBER001"})
	if err == nil || !strings.Contains(err.Error(), "returned 503") {
		t.Fatalf("expected 503 error, got %v", err)
	}
	mu.Lock()
	n := calls
	mu.Unlock()
	if n != 3 {
		t.Fatalf("expected initial call + 2 retries, got %d calls", n)
	}
}

func TestDoMalformedBody(t *testing.T) {
	th := &tokenHandler{}
	mux := http.NewServeMux()
	mux.Handle("/v1/security/oauth2/token", th)
	mux.HandleFunc("/v1/reference-data/locations/hotels/by-city", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>not json</html>`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := newTestClient(t, ts.URL, nil)
	_, err := c.ListHotels(context.Background(), domain.Scope{CityCode: "BER"})
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestChunk(t *testing.T) {
	got := chunk([]string{"a", "b", "c", "d", "e"}, 2)
	if len(got) != 3 || len(got[0]) != 2 || len(got[2]) != 1 {
		t.Fatalf("chunk = %v", got)
	}
	if len(chunk(nil, 2)) != 0 {
		t.Fatalf("chunk(nil) should be empty")
	}
}
