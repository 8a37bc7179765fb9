package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	HTTP      HTTPConfig      `koanf:"http"`
	Google    GoogleConfig    `koanf:"google"`
	Geotab    GeotabConfig    `koanf:"geotab"`
	Cache     CacheConfig     `koanf:"cache"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	// Technicians maps technician name -> home address. This is the default
	// roster used when a request does not carry its own.
	Technicians map[string]string `koanf:"technicians"`
	// CapacityURL points at the training/capacity workbook (raw .xlsx URL).
	CapacityURL string `koanf:"capacity_url"`
}

type HTTPConfig struct {
	Port string `koanf:"port"`
}

type GoogleConfig struct {
	APIKey string `koanf:"api_key"`
	// TrafficModel is one of best_guess, pessimistic, optimistic.
	TrafficModel string `koanf:"traffic_model"`
}

type GeotabConfig struct {
	Server   string `koanf:"server"`
	Database string `koanf:"database"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	// DeviceDrivers maps device id or device name -> driver name, covering
	// devices where the API does not report a driver.
	DeviceDrivers     map[string]string `koanf:"device_drivers"`
	MaxCallsPerMinute int               `koanf:"max_calls_per_minute"`
}

// Enabled reports whether Geotab credentials are fully configured.
func (g GeotabConfig) Enabled() bool {
	return g.Database != "" && g.Username != "" && g.Password != ""
}

type CacheConfig struct {
	// Driver selects the cache store: "sqlite" or "postgres".
	Driver string `koanf:"driver"`
	// Path is the SQLite database file (sqlite driver only).
	Path string `koanf:"path"`
	// DatabaseURL is the Postgres connection string (postgres driver only).
	DatabaseURL string `koanf:"database_url"`
	// RetentionDays bounds how long travel-time entries stay valid.
	RetentionDays int `koanf:"retention_days"`
}

type SchedulerConfig struct {
	DayHours          float64 `koanf:"day_hours"`
	LunchMinutes      int     `koanf:"lunch_minutes"`
	BufferMinutes     int     `koanf:"buffer_minutes"`
	MinSplitChunkMin  int     `koanf:"min_split_chunk_minutes"`
	OvertimeCeilingMi int     `koanf:"overtime_ceiling_minutes"`
	OvertimeOverageMi int     `koanf:"overtime_max_overage_minutes"`
	MaxDays           int     `koanf:"max_days"`
	SoloPoolSize      int     `koanf:"solo_pool_size"`
	DuoPoolSize       int     `koanf:"duo_pool_size"`
	NearbyTechs       int     `koanf:"nearby_techs"`
	StrictZones       bool    `koanf:"strict_zones"`
	PenaltyNorthSouth int     `koanf:"penalty_north_south"`
	PenaltyMTLOther   int     `koanf:"penalty_mtl_other"`
	PenaltyOther      int     `koanf:"penalty_other"`
}

// DailyBudgetMinutes is the bookable time per technician per day: the working
// day minus lunch.
func (s SchedulerConfig) DailyBudgetMinutes() int {
	b := int(math.Round(s.DayHours*60)) - s.LunchMinutes
	if b < 0 {
		return 0
	}
	return b
}

// Load reads the YAML config at path (optional) and applies environment
// overrides with the TR_ prefix ("TR_GOOGLE__API_KEY" -> google.api_key).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config %q: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("TR_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "tr_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies defaults for everything the file and environment left
// unset.
func (c *Config) SetDefaults() {
	if c.HTTP.Port == "" {
		c.HTTP.Port = "8080"
	}
	if c.Google.TrafficModel == "" {
		c.Google.TrafficModel = "best_guess"
	}
	if c.Geotab.Server == "" {
		c.Geotab.Server = "my.geotab.com"
	}
	if c.Geotab.MaxCallsPerMinute == 0 {
		c.Geotab.MaxCallsPerMinute = 60
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "sqlite"
	}
	if c.Cache.Path == "" {
		c.Cache.Path = "data/techroute.db"
	}
	if c.Cache.RetentionDays == 0 {
		c.Cache.RetentionDays = 30
	}

	s := &c.Scheduler
	if s.DayHours == 0 {
		s.DayHours = 8
	}
	if s.LunchMinutes == 0 {
		s.LunchMinutes = 30
	}
	if s.BufferMinutes == 0 {
		s.BufferMinutes = 10
	}
	if s.MinSplitChunkMin == 0 {
		s.MinSplitChunkMin = 180
	}
	if s.OvertimeCeilingMi == 0 {
		s.OvertimeCeilingMi = 14 * 60
	}
	if s.OvertimeOverageMi == 0 {
		s.OvertimeOverageMi = 180
	}
	if s.MaxDays == 0 {
		s.MaxDays = 31
	}
	if s.SoloPoolSize == 0 {
		s.SoloPoolSize = 40
	}
	if s.DuoPoolSize == 0 {
		s.DuoPoolSize = 15
	}
	if s.NearbyTechs == 0 {
		s.NearbyTechs = 4
	}
	if s.PenaltyNorthSouth == 0 {
		s.PenaltyNorthSouth = 90
	}
	if s.PenaltyMTLOther == 0 {
		s.PenaltyMTLOther = 45
	}
	if s.PenaltyOther == 0 {
		s.PenaltyOther = 30
	}
}

// Validate checks invariants the scheduler relies on.
func (c *Config) Validate() error {
	switch c.Cache.Driver {
	case "sqlite":
		if c.Cache.Path == "" {
			return fmt.Errorf("cache.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Cache.DatabaseURL == "" {
			return fmt.Errorf("cache.database_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown cache driver %q", c.Cache.Driver)
	}

	switch c.Google.TrafficModel {
	case "best_guess", "pessimistic", "optimistic":
	default:
		return fmt.Errorf("unknown traffic model %q", c.Google.TrafficModel)
	}

	s := c.Scheduler
	if s.DailyBudgetMinutes() <= 0 {
		return fmt.Errorf("scheduler: day_hours and lunch_minutes leave no bookable time")
	}
	if s.OvertimeCeilingMi < int(math.Round(s.DayHours*60)) {
		return fmt.Errorf("scheduler: overtime ceiling below the regular day length")
	}
	if s.MinSplitChunkMin <= 0 {
		return fmt.Errorf("scheduler: min_split_chunk_minutes must be positive")
	}
	return nil
}
