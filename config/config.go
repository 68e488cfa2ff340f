package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port string
	}
	Database struct {
		DSN string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Store struct {
		// Driver is memory, redis or postgres.
		Driver      string
		CardsDriver string
		CardTTL     time.Duration
	}
	JWT struct {
		Secret string
		TTL    time.Duration
	}
	Game struct {
		SmallBlind    int64
		BigBlind      int64
		StartingChips int64
		MaxSeats      int
		TurnTimeLimit time.Duration
		NextHandDelay time.Duration
		SweepInterval time.Duration
	}
	Match struct {
		QueueTTL time.Duration
	}
	Log struct {
		Level string
	}
}

func defaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.cardsDriver", "memory")
	v.SetDefault("store.cardTTL", 2*time.Hour)
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("game.smallBlind", 10)
	v.SetDefault("game.bigBlind", 20)
	v.SetDefault("game.startingChips", 1000)
	v.SetDefault("game.maxSeats", 9)
	v.SetDefault("game.turnTimeLimit", 30*time.Second)
	v.SetDefault("game.nextHandDelay", 5*time.Second)
	v.SetDefault("game.sweepInterval", time.Second)
	v.SetDefault("match.queueTTL", 5*time.Minute)
	v.SetDefault("log.level", "info")
}

// Load reads the YAML file at path, if any, over the defaults. HOLDEM_*
// variables override both, e.g. HOLDEM_REDIS_ADDR or HOLDEM_JWT_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix("holdem")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 没有 jwt.secret 默认值时 AutomaticEnv 不会把 HOLDEM_JWT_SECRET 映射进 Unmarshal
	for _, key := range []string{"jwt.secret", "database.dsn", "redis.password"} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "memory", "redis":
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("store.driver postgres needs database.dsn")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	switch c.Store.CardsDriver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown store.cardsDriver %q", c.Store.CardsDriver)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.Game.SmallBlind <= 0 || c.Game.BigBlind < c.Game.SmallBlind {
		return fmt.Errorf("invalid blinds %d/%d", c.Game.SmallBlind, c.Game.BigBlind)
	}
	if c.Game.MaxSeats < 2 || c.Game.MaxSeats > 23 {
		// 52 张牌最多发 23 人的底牌 + 5 张公共牌
		return fmt.Errorf("game.maxSeats must be between 2 and 23, got %d", c.Game.MaxSeats)
	}
	return nil
}
