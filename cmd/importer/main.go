package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"hotelsync/internal/adapters/amadeus"
	"hotelsync/internal/adapters/observability"
	redisad "hotelsync/internal/adapters/redis"
	"hotelsync/internal/app"
	"hotelsync/internal/domain"
	"hotelsync/internal/shared"
	mysqlrepo "hotelsync/internal/storage/mysql"
)

var (
	flagProvider  string
	flagCity      string
	flagLat       float64
	flagLng       float64
	flagRadius    int
	flagHotelIDs  string
	flagCheckin   string
	flagCheckout  string
	flagAdults    int
	flagRooms     int
	flagAllCities bool
)

var cfg shared.Config

var rootCmd = &cobra.Command{
	Use:   "importer",
	Short: "Sync hotel, room, and offer inventory from a travel provider into the local catalog",
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		cfg = shared.Load()
		log.Logger = observability.NewLogger(cfg.AppEnv)
		observability.Serve(cfg.MetricsAddr)
	},
	RunE:          runImport,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flagProvider, "provider", "amadeus", "provider to import from")
	f.StringVar(&flagCity, "city", "", "city code scope (e.g. BER)")
	f.Float64Var(&flagLat, "lat", 0, "latitude for geocode scope")
	f.Float64Var(&flagLng, "lng", 0, "longitude for geocode scope")
	f.IntVar(&flagRadius, "radius", 50, "geocode search radius in KM")
	f.StringVar(&flagHotelIDs, "hotel-ids", "", "comma-separated explicit hotel IDs")
	f.StringVar(&flagCheckin, "checkin", "", "check-in date (YYYY-MM-DD)")
	f.StringVar(&flagCheckout, "checkout", "", "check-out date (YYYY-MM-DD)")
	f.IntVar(&flagAdults, "adults", 2, "number of adults")
	f.IntVar(&flagRooms, "rooms", 1, "number of rooms")
	f.BoolVar(&flagAllCities, "all-cities", false, "import every configured city")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("import failed")
		os.Exit(1)
	}
}

func runImport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("db.Ping: %w", err)
	}
	repo := mysqlrepo.New(db)

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		cache = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	}

	registry := app.NewRegistry()
	if cfg.AmadeusClientID != "" {
		client, err := amadeus.New(amadeus.Config{
			ClientID:          cfg.AmadeusClientID,
			ClientSecret:      cfg.AmadeusClientSecret,
			Test:              cfg.AmadeusTest,
			BatchSize:         cfg.MaxHotelIDsPerCall,
			PacingDelay:       cfg.Delay,
			MaxRetries:        cfg.MaxRetries,
			BackoffMultiplier: cfg.BackoffMultiplier,
			TokenBuffer:       cfg.TokenBuffer,
			CatalogTTL:        cfg.CatalogTTL,
		}, cache)
		if err != nil {
			return err
		}
		registry.Register(client.Name(), client)
	}

	provider, err := registry.Get(flagProvider)
	if err != nil {
		log.Error().Strs("available", registry.Available()).Str("provider", flagProvider).Msg("provider not configured")
		return err
	}

	params := buildSearchParams()
	scopes := buildScopes(cmd)

	log.Info().
		Str("provider", provider.Name()).
		Int("scopes", len(scopes)).
		Str("checkin", params.CheckIn).
		Str("checkout", params.CheckOut).
		Msg("importer starting")

	sem := semaphore.NewWeighted(int64(max(cfg.Workers, 1)))
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		aborted bool
	)
	for _, scope := range scopes {
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		wg.Add(1)
		go func(sc domain.Scope) {
			defer wg.Done()
			defer sem.Release(1)

			im := app.NewImporter(provider, repo, cfg.ImportRatings)
			stats := im.Run(ctx, sc, params)

			mu.Lock()
			printStats(sc, stats)
			if stats.Aborted {
				aborted = true
			}
			mu.Unlock()
		}(scope)
	}
	wg.Wait()

	if aborted {
		return errors.New("import aborted")
	}
	return nil
}

// buildScopes maps the flags onto run scopes: explicit city, geocode, or
// hotel-ID list; with --all-cities every configured city becomes its own
// run, and with no scope flags the first configured city is used.
func buildScopes(cmd *cobra.Command) []domain.Scope {
	if flagAllCities {
		scopes := make([]domain.Scope, 0, len(cfg.Cities))
		for _, c := range cfg.Cities {
			scopes = append(scopes, domain.Scope{CityCode: strings.ToUpper(c)})
		}
		return scopes
	}

	switch {
	case flagCity != "":
		return []domain.Scope{{CityCode: strings.ToUpper(flagCity)}}
	case cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng"):
		return []domain.Scope{{
			Geo:      &domain.GeoCode{Latitude: flagLat, Longitude: flagLng},
			RadiusKM: flagRadius,
		}}
	case flagHotelIDs != "":
		var ids []string
		for _, id := range strings.Split(flagHotelIDs, ",") {
			if t := strings.TrimSpace(id); t != "" {
				ids = append(ids, t)
			}
		}
		return []domain.Scope{{HotelIDs: ids}}
	}

	city := "BER"
	if len(cfg.Cities) > 0 {
		city = strings.ToUpper(cfg.Cities[0])
	}
	return []domain.Scope{{CityCode: city}}
}

func buildSearchParams() domain.SearchParams {
	checkin := flagCheckin
	if checkin == "" {
		checkin = time.Now().AddDate(0, 0, cfg.CheckinDays).Format("2006-01-02")
	}
	checkout := flagCheckout
	if checkout == "" {
		if t, err := time.Parse("2006-01-02", checkin); err == nil {
			checkout = t.AddDate(0, 0, 2).Format("2006-01-02")
		}
	}
	return domain.SearchParams{
		CheckIn:  checkin,
		CheckOut: checkout,
		Adults:   flagAdults,
		Rooms:    flagRooms,
	}
}

func printStats(scope domain.Scope, stats app.Stats) {
	fmt.Printf("\nImport results for %s:\n", scope)
	fmt.Printf("  hotels  processed=%d created=%d updated=%d\n",
		stats.HotelsProcessed, stats.HotelsCreated, stats.HotelsUpdated)
	fmt.Printf("  rooms   processed=%d created=%d updated=%d\n",
		stats.RoomsProcessed, stats.RoomsCreated, stats.RoomsUpdated)
	fmt.Printf("  offers  processed=%d created=%d updated=%d deactivated=%d\n",
		stats.OffersProcessed, stats.OffersCreated, stats.OffersUpdated, stats.OffersDeactivated)
	if len(stats.Errors) > 0 {
		fmt.Println("  errors:")
		for _, e := range stats.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
}
