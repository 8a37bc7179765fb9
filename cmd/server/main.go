package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"techroute-service/internal/adapters/cache"
	"techroute-service/internal/adapters/geotab"
	"techroute-service/internal/adapters/googlemaps"
	"techroute-service/internal/api"
	"techroute-service/internal/config"
	"techroute-service/internal/domain"
	"techroute-service/internal/platform/db"
	"techroute-service/internal/platform/metrics"
	"techroute-service/internal/ports"
	"techroute-service/internal/scheduler"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, relying on environment variables")
	}
	setupLogging()
	metrics.RegisterDefault()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	if cfg.Google.APIKey == "" {
		log.Fatal().Msg("google.api_key is required (TR_GOOGLE__API_KEY)")
	}
	maps, err := googlemaps.NewClient(cfg.Google.APIKey, cfg.Google.TrafficModel)
	if err != nil {
		log.Fatal().Err(err).Msg("google maps client")
	}

	store, travelCache, geoCache, err := openCaches(cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("open cache store")
	}
	defer store.Close()

	oracle := scheduler.NewTravelOracle(maps, travelCache)
	prefilter := scheduler.NewPrefilter(maps, geoCache)
	planner := scheduler.NewAssigner(oracle, prefilter, schedulerParams(cfg.Scheduler))

	var fleet ports.FleetProvider
	if cfg.Geotab.Enabled() {
		gt, err := geotab.NewClient(geotab.Config{
			Server:            cfg.Geotab.Server,
			Database:          cfg.Geotab.Database,
			Username:          cfg.Geotab.Username,
			Password:          cfg.Geotab.Password,
			DeviceDrivers:     cfg.Geotab.DeviceDrivers,
			MaxCallsPerMinute: cfg.Geotab.MaxCallsPerMinute,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("geotab client")
		}
		fleet = gt
		log.Info().Str("database", cfg.Geotab.Database).Msg("geotab telemetry enabled")
	} else {
		log.Info().Msg("geotab telemetry disabled (credentials not configured)")
	}

	handler := api.NewRouter(planner, defaultRoster(cfg.Technicians), maps, fleet)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().
		Str("port", cfg.HTTP.Port).
		Str("cache_driver", cfg.Cache.Driver).
		Int("default_techs", len(cfg.Technicians)).
		Msg("techroute server listening")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}
	if os.Getenv("LOG_PRETTY") == "true" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// openCaches opens the configured cache store, applies the schema, and
// returns driver-appropriate travel and geocode caches.
func openCaches(cfg config.CacheConfig) (*sql.DB, ports.TravelCache, ports.GeocodeCache, error) {
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour

	switch cfg.Driver {
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, nil, fmt.Errorf("create cache dir: %w", err)
			}
		}
		store, err := sql.Open("sqlite", cfg.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite cache: %w", err)
		}
		if err := cache.InitSqliteSchema(store); err != nil {
			store.Close()
			return nil, nil, nil, err
		}
		return store, cache.NewSqliteTravelCache(store, retention), cache.NewSqliteGeocodeCache(store), nil

	case "postgres":
		store, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := cache.InitPostgresSchema(store); err != nil {
			store.Close()
			return nil, nil, nil, err
		}
		return store, cache.NewSQLTravelCache(store, retention), cache.NewSQLGeocodeCache(store), nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

func schedulerParams(s config.SchedulerConfig) scheduler.Params {
	return scheduler.Params{
		DailyBudgetMin:        s.DailyBudgetMinutes(),
		LunchMin:              s.LunchMinutes,
		BufferMin:             s.BufferMinutes,
		MinChunkMin:           s.MinSplitChunkMin,
		OvertimeCeilingMin:    s.OvertimeCeilingMi,
		OvertimeMaxOverageMin: s.OvertimeOverageMi,
		MaxDays:               s.MaxDays,
		SoloPool:              s.SoloPoolSize,
		DuoPool:               s.DuoPoolSize,
		NearbyTechs:           s.NearbyTechs,
		StrictZones:           s.StrictZones,
		Penalties: domain.ZonePenalties{
			NorthSouth: s.PenaltyNorthSouth,
			MTLOther:   s.PenaltyMTLOther,
			Other:      s.PenaltyOther,
		},
	}
}

// defaultRoster builds the configured technician roster in name order so the
// greedy pass sees a stable sequence.
func defaultRoster(techs map[string]string) []domain.Technician {
	names := make([]string, 0, len(techs))
	for name := range techs {
		names = append(names, name)
	}
	sort.Strings(names)

	roster := make([]domain.Technician, 0, len(names))
	for _, name := range names {
		roster = append(roster, domain.NewTechnician(name, techs[name]))
	}
	return roster
}
