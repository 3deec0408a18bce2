// Package config loads the server configuration from a TOML file, a .env
// file and MINES_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/Starzy87/stake-mines-backend/internal/games"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MINES_"

type Config struct {
	Server  Server  `toml:"server"`
	Auth    Auth    `toml:"auth"`
	Game    Game    `toml:"game"`
	Store   Store   `toml:"store"`
	Archive Archive `toml:"archive"`
	Books   Books   `toml:"books"`
	Audit   Audit   `toml:"audit"`
	Modes   []Mode  `toml:"modes"`
}

type Server struct {
	Addr           string        `toml:"addr"`
	ReadTimeout    time.Duration `toml:"read_timeout"`
	WriteTimeout   time.Duration `toml:"write_timeout"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	StaticDir      string        `toml:"static_dir"`
	CORSOrigins    []string      `toml:"cors_origins"`
}

type Auth struct {
	// JWTSecret enables bearer-token identities. Empty trusts X-Player-ID.
	JWTSecret string `toml:"jwt_secret"`
}

type Game struct {
	HouseEdge         string `toml:"house_edge"`
	MaxPayoutMultiple int64  `toml:"max_payout_multiple"`
	InitialBalance    int64  `toml:"initial_balance"`
	MinBet            int64  `toml:"min_bet"`
	MaxBet            int64  `toml:"max_bet"`
}

type Store struct {
	Driver        string `toml:"driver"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

type Archive struct {
	// Path of the SQLite file. Empty keeps the archive in memory.
	Path string `toml:"path"`
}

type Books struct {
	// PublishDir holds index.json. Empty disables book modes.
	PublishDir string `toml:"publish_dir"`
}

type Audit struct {
	Path       string `toml:"path"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

type Mode struct {
	Name  string `toml:"name"`
	Cost  string `toml:"cost"`
	Bonus string `toml:"bonus"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:           ":3000",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			RequestTimeout: 10 * time.Second,
			CORSOrigins:    []string{"*"},
		},
		Game: Game{
			HouseEdge:         games.DefaultHouseEdge.String(),
			MaxPayoutMultiple: 10000,
			InitialBalance:    100000,
			MinBet:            1,
			MaxBet:            1000000,
		},
		Store: Store{Driver: "memory", RedisAddr: "127.0.0.1:6379"},
		Audit: Audit{MaxSizeMB: 100, MaxBackups: 10, MaxAgeDays: 30, Compress: true},
		Modes: []Mode{
			{Name: "normal", Cost: "1"},
			{Name: "boost10", Cost: "10", Bonus: "gold_gem"},
			{Name: "boost75", Cost: "75", Bonus: "nova_star"},
		},
	}
}

// Load reads .env (if present), then path (if non-empty), then the
// environment, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		// modes from the file replace the defaults wholesale
		defaults := cfg.Modes
		cfg.Modes = nil
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if cfg.Modes == nil {
			cfg.Modes = defaults
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs error

	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	i64 := func(key string, dst *int64) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("ADDR", &c.Server.Addr)
	dur("READ_TIMEOUT", &c.Server.ReadTimeout)
	dur("WRITE_TIMEOUT", &c.Server.WriteTimeout)
	dur("REQUEST_TIMEOUT", &c.Server.RequestTimeout)
	str("STATIC_DIR", &c.Server.StaticDir)
	if v, ok := lookup(EnvPrefix + "CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = splitList(v)
	}

	str("JWT_SECRET", &c.Auth.JWTSecret)

	str("HOUSE_EDGE", &c.Game.HouseEdge)
	i64("MAX_PAYOUT_MULTIPLE", &c.Game.MaxPayoutMultiple)
	i64("INITIAL_BALANCE", &c.Game.InitialBalance)
	i64("MIN_BET", &c.Game.MinBet)
	i64("MAX_BET", &c.Game.MaxBet)

	str("STORE_DRIVER", &c.Store.Driver)
	str("REDIS_ADDR", &c.Store.RedisAddr)
	str("REDIS_PASSWORD", &c.Store.RedisPassword)
	if v, ok := lookup(EnvPrefix + "REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%sREDIS_DB: %w", EnvPrefix, err))
		} else {
			c.Store.RedisDB = n
		}
	}

	str("ARCHIVE_PATH", &c.Archive.Path)
	str("BOOKS_DIR", &c.Books.PublishDir)
	str("AUDIT_PATH", &c.Audit.Path)

	return errs
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs error

	if c.Server.Addr == "" {
		errs = multierr.Append(errs, errors.New("server.addr is required"))
	}
	if _, err := c.HouseEdge(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if c.Game.MaxPayoutMultiple <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("game.max_payout_multiple must be positive, got %d", c.Game.MaxPayoutMultiple))
	}
	if c.Game.InitialBalance < 0 {
		errs = multierr.Append(errs, fmt.Errorf("game.initial_balance must not be negative"))
	}
	if c.Game.MinBet <= 0 || c.Game.MaxBet < c.Game.MinBet {
		errs = multierr.Append(errs, fmt.Errorf("game bet limits [%d, %d] are invalid", c.Game.MinBet, c.Game.MaxBet))
	}

	switch c.Store.Driver {
	case "memory":
	case "redis":
		if c.Store.RedisAddr == "" {
			errs = multierr.Append(errs, errors.New("store.redis_addr is required for the redis driver"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("store.driver %q is not memory or redis", c.Store.Driver))
	}

	seen := make(map[string]bool, len(c.Modes))
	for _, m := range c.Modes {
		if m.Name == "" {
			errs = multierr.Append(errs, errors.New("modes: name is required"))
			continue
		}
		if seen[m.Name] {
			errs = multierr.Append(errs, fmt.Errorf("modes: %q is defined twice", m.Name))
		}
		seen[m.Name] = true
		if cost, err := decimal.NewFromString(m.Cost); err != nil || !cost.IsPositive() {
			errs = multierr.Append(errs, fmt.Errorf("modes: %q cost %q must be a positive number", m.Name, m.Cost))
		}
		if _, ok := games.LookupBonusProfile(m.Bonus); !ok {
			errs = multierr.Append(errs, fmt.Errorf("modes: %q bonus profile %q is unknown", m.Name, m.Bonus))
		}
	}
	return errs
}

// HouseEdge parses game.house_edge.
func (c *Config) HouseEdge() (decimal.Decimal, error) {
	edge, err := decimal.NewFromString(c.Game.HouseEdge)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("game.house_edge %q: %w", c.Game.HouseEdge, err)
	}
	if !edge.IsPositive() || edge.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Decimal{}, fmt.Errorf("game.house_edge must be in (0, 1], got %s", edge)
	}
	return edge, nil
}
