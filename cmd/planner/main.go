package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"techroute-service/internal/adapters/cache"
	"techroute-service/internal/adapters/googlemaps"
	"techroute-service/internal/adapters/spreadsheet"
	"techroute-service/internal/config"
	"techroute-service/internal/domain"
	"techroute-service/internal/platform/db"
	"techroute-service/internal/ports"
	"techroute-service/internal/scheduler"
)

// planner runs one monthly scheduling pass from the command line: jobs
// workbook in, five-sheet planning workbook out.
func main() {
	jobsPath := flag.String("jobs", "", "path to the jobs workbook (.xlsx)")
	outPath := flag.String("out", "plan.xlsx", "path of the planning workbook to write")
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	auto := flag.Bool("auto", false, "grow the roster until every job fits within the horizon")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, relying on environment variables")
	}
	setupLogging()

	if *jobsPath == "" {
		flag.Usage()
		log.Fatal().Msg("-jobs is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if cfg.Google.APIKey == "" {
		log.Fatal().Msg("google.api_key is required (TR_GOOGLE__API_KEY)")
	}
	if len(cfg.Technicians) == 0 {
		log.Fatal().Msg("technicians roster is empty; configure technicians in the YAML file")
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

	jobsFile, err := os.Open(*jobsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open jobs workbook")
	}
	jobs, err := spreadsheet.ReadJobs(jobsFile)
	jobsFile.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("read jobs workbook")
	}

	oracle := scheduler.NewTravelOracle(maps, travelCache)
	prefilter := scheduler.NewPrefilter(maps, geoCache)
	planner := scheduler.NewAssigner(oracle, prefilter, schedulerParams(cfg.Scheduler))
	roster := defaultRoster(cfg.Technicians)

	ctx := context.Background()

	if cfg.CapacityURL != "" {
		capacity, err := spreadsheet.FetchCapacity(ctx, nil, cfg.CapacityURL)
		if err != nil {
			log.Warn().Err(err).Msg("capacity workbook unavailable, planning without it")
		} else {
			log.Info().
				Int("trainings", len(capacity.Trainings)).
				Int("techs", len(capacity.ByTech)).
				Msg("capacity workbook loaded")
			for _, t := range roster {
				if _, ok := capacity.ByTech[t.Name]; !ok {
					log.Warn().Str("technician", t.Name).Msg("technician missing from capacity workbook")
				}
			}
		}
	}
	var result domain.PlanResult
	if *auto {
		result, err = planner.AutoPlan(ctx, roster, jobs)
	} else {
		result, err = planner.Run(ctx, roster, jobs)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("scheduling run failed")
	}

	// AutoPlan may settle on a roster prefix smaller than the configured one.
	used := roster
	if result.Techs < len(roster) {
		used = roster[:result.Techs]
	}
	if err := spreadsheet.WritePlanFile(*outPath, result, jobs, used); err != nil {
		log.Fatal().Err(err).Msg("write planning workbook")
	}

	stats := oracle.Stats()
	log.Info().
		Str("run_id", result.RunID).
		Bool("success", result.Success).
		Int("days", result.Days).
		Int("techs", result.Techs).
		Int("visits", len(result.Visits)).
		Int("unscheduled", len(result.Unscheduled)).
		Int("unplannable", len(result.Unplannable)).
		Int64("cache_hits", stats.CacheHits).
		Int64("external_calls", stats.ExternalCalls).
		Int64("lookup_failures", stats.Failures).
		Str("out", *outPath).
		Msg("plan written")
}

func setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}
}

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
