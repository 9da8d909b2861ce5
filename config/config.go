package config

import (
	"fmt"
	"time"

	"github.com/kasuganosora/mmocache/cache"
	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/game/guild"
	"github.com/kasuganosora/mmocache/game/item"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Database  DatabaseConfig    `mapstructure:"database"`
	Cache     cache.Config      `mapstructure:"cache"`
	Security  SecurityConfig    `mapstructure:"security"`
	Storage   StorageConfig     `mapstructure:"storage"`
	Inventory item.Limits       `mapstructure:"inventory"`
	Items     []item.Definition `mapstructure:"items"`
	Guild     GuildConfig       `mapstructure:"guild"`
	Economy   EconomyConfig     `mapstructure:"economy"`
	Codec     CodecConfig       `mapstructure:"codec"`
	Scheduler SchedulerConfig   `mapstructure:"scheduler"`
	Gateway   GatewayConfig     `mapstructure:"gateway"`
	Audit     AuditConfig       `mapstructure:"audit"`
}

// Process modes.
const (
	ModeCache   = "cache"
	ModeGateway = "gateway"
)

type ServerConfig struct {
	// Mode selects the role of the process: the cache service itself or a
	// game-server gateway that talks to a remote cache service.
	Mode       string   `mapstructure:"mode"`        // cache | gateway
	Port       int      `mapstructure:"port"`
	Debug      bool     `mapstructure:"debug"`
	AllowedIPs []string `mapstructure:"allowed_ips"` // empty = allow all
	// AdminKey guards /admin. Empty disables the admin routes.
	AdminKey string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
	// SlowQuery is the duration above which a statement is logged; 0 = off.
	SlowQuery time.Duration `mapstructure:"slow_query"`
}

// AuditConfig sizes the audit_logs writer.
type AuditConfig struct {
	QueueSize     int           `mapstructure:"queue_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type SecurityConfig struct {
	// ServiceSecret signs the bearer tokens game servers present to the
	// facade. An empty secret disables service authentication.
	ServiceSecret  string        `mapstructure:"service_secret"`
	ServiceTTL     time.Duration `mapstructure:"service_ttl"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// StorageConfig holds the fixed capacity of player and guild storages.
type StorageConfig struct {
	Player    item.Limits `mapstructure:"player"`
	Guild     item.Limits `mapstructure:"guild"`
	Channel   string      `mapstructure:"channel"`
	Buildings string      `mapstructure:"buildings_key"`
}

type GuildConfig struct {
	guild.Config `mapstructure:",squash"`
	Roles []entity.GuildRole `mapstructure:"roles"`
}

type EconomyConfig struct {
	BalancePolicy string `mapstructure:"balance_policy"` // allow | reject | clamp
}

type CodecConfig struct {
	Character string `mapstructure:"character"` // msgpack | cbor | json
	// MaxPayload caps an incoming serialized character; 0 = no limit.
	MaxPayload int `mapstructure:"max_payload"`
}

// GatewayConfig configures gateway mode.
type GatewayConfig struct {
	CacheURL       string   `mapstructure:"cache_url"`
	ServiceName    string   `mapstructure:"service_name"`
	AllowedOrigins []string `mapstructure:"allowed_origins"` // empty = allow all
	// StorageRPS limits storage packets per connection; 0 = unlimited.
	StorageRPS   float64 `mapstructure:"storage_rps"`
	StorageBurst int     `mapstructure:"storage_burst"`
}

type SchedulerConfig struct {
	StatsInterval time.Duration `mapstructure:"stats_interval"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return decode(v)
}

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	switch cfg.Server.Mode {
	case ModeCache, ModeGateway:
	default:
		return nil, fmt.Errorf("config: unknown server mode %q", cfg.Server.Mode)
	}
	if len(cfg.Guild.Roles) == 0 {
		cfg.Guild.Roles = defaultGuildRoles()
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", ModeCache)
	v.SetDefault("server.port", 7700)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/mmocache.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("database.slow_query", "200ms")
	v.SetDefault("cache.key_prefix", "mmocache:")
	v.SetDefault("audit.queue_size", 1024)
	v.SetDefault("audit.batch_size", 100)
	v.SetDefault("audit.flush_interval", "2s")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("security.service_ttl", "24h")
	v.SetDefault("security.rate_limit_rps", 500)
	v.SetDefault("security.rate_limit_burst", 1000)
	v.SetDefault("storage.player.slot_limit", 100)
	v.SetDefault("storage.player.weight_limit", 0)
	v.SetDefault("storage.guild.slot_limit", 300)
	v.SetDefault("storage.guild.weight_limit", 0)
	v.SetDefault("storage.channel", "storage_updates")
	v.SetDefault("storage.buildings_key", "mmocache:live_buildings")
	v.SetDefault("inventory.slot_limit", 0)
	v.SetDefault("inventory.weight_limit", 0)
	v.SetDefault("guild.skill_points_per_level", 1)
	v.SetDefault("guild.max_skill_level", 10)
	v.SetDefault("economy.balance_policy", "allow")
	v.SetDefault("codec.character", "msgpack")
	v.SetDefault("codec.max_payload", 1<<20)
	v.SetDefault("scheduler.stats_interval", "1m")
	v.SetDefault("gateway.cache_url", "http://127.0.0.1:7700")
	v.SetDefault("gateway.service_name", "game")
	v.SetDefault("gateway.storage_rps", 10)
	v.SetDefault("gateway.storage_burst", 20)
}

func defaultGuildRoles() []entity.GuildRole {
	return []entity.GuildRole{
		{Name: "Master", CanInvite: true, CanKick: true, ShareExpPercentage: 0},
		{Name: "Officer", CanInvite: true, CanKick: true, ShareExpPercentage: 0},
		{Name: "Member", CanInvite: false, CanKick: false, ShareExpPercentage: 0},
	}
}
