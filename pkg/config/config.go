package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Storage   StorageConfig   `mapstructure:"storage"`
	MongoDB   MongoDBConfig   `mapstructure:"mongodb"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Etcd      EtcdConfig      `mapstructure:"etcd"`
	AMQP      AMQPConfig      `mapstructure:"amqp"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Name         string        `mapstructure:"name"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	PublicURL    string        `mapstructure:"public_url"`
	AllowOrigins []string      `mapstructure:"allow_origins"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type GRPCConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (c *GRPCConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig selects the document store. "memory" keeps everything in
// process and is meant for tests and local runs.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type MongoDBConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// MySQLConfig configures the staff directory. When Host is empty the
// directory falls back to SQLite.
type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
	TTL         int64         `mapstructure:"ttl"`
}

type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// NotifyConfig picks how events leave the instance: "local" only feeds the
// in-process websocket hub, "redis" and "amqp" also fan out to other instances.
type NotifyConfig struct {
	Broker string `mapstructure:"broker"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AdminLogin    string        `mapstructure:"admin_login"`
	AdminPassword string        `mapstructure:"admin_password"`
}

type LifecycleConfig struct {
	CallExpiry     time.Duration `mapstructure:"call_expiry"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Serializer     string        `mapstructure:"serializer"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "dinein")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 9090)

	v.SetDefault("storage.driver", "mongo")
	v.SetDefault("mongodb.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("mongodb.database", "dinein")
	v.SetDefault("mongodb.connect_timeout", 10*time.Second)

	v.SetDefault("mysql.host", "")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.username", "")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "dinein")
	v.SetDefault("mysql.max_idle_conns", 5)
	v.SetDefault("mysql.max_open_conns", 20)
	v.SetDefault("sqlite.path", "dinein.db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("etcd.endpoints", []string{})
	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	v.SetDefault("etcd.prefix", "/dinein")
	v.SetDefault("etcd.ttl", 10)

	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "dinein.events")
	v.SetDefault("notify.broker", "local")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.admin_password", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.admin_login", "admin")

	v.SetDefault("lifecycle.call_expiry", 3*time.Minute)
	v.SetDefault("lifecycle.sweep_interval", time.Minute)
	v.SetDefault("lifecycle.request_timeout", 10*time.Second)
	v.SetDefault("lifecycle.serializer", "actor")
	v.SetDefault("lifecycle.lock_ttl", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
}

// Load reads configPath when it exists. DINEIN_* environment variables,
// including ones set by a local .env file, override file values.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DINEIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		// Read config file
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "mongo", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Notify.Broker {
	case "local", "redis", "amqp":
	default:
		return fmt.Errorf("unknown notify broker %q", c.Notify.Broker)
	}
	switch c.Lifecycle.Serializer {
	case "actor", "redis":
	default:
		return fmt.Errorf("unknown serializer %q", c.Lifecycle.Serializer)
	}
	if c.Lifecycle.CallExpiry <= 0 || c.Lifecycle.SweepInterval <= 0 {
		return errors.New("lifecycle.call_expiry and lifecycle.sweep_interval must be positive")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	return nil
}
