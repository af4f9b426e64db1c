package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	// ConnStr overrides the individual fields when set.
	ConnStr  string `mapstructure:"conn_str"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	if c.ConnStr != "" {
		return c.ConnStr
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type WorkerConfig struct {
	ID           string `mapstructure:"id"`
	BatchSize    int    `mapstructure:"batch_size"`
	StartEventID int64  `mapstructure:"start_event_id"`
	// The cooldown is asymmetric: the embedded worker shares a process with
	// the intake API, so it polls tighter; the standalone worker backs off
	// longer between cycles.
	CooldownEmbedded   time.Duration `mapstructure:"cooldown_embedded"`
	CooldownStandalone time.Duration `mapstructure:"cooldown_standalone"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type AppConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Env         string `mapstructure:"env"`
	LogLevel    string `mapstructure:"log_level"`
	// SingleProcess runs the settlement worker inside the API server process
	// once the listener is bound, instead of as a separate process.
	SingleProcess  bool           `mapstructure:"single_process"`
	SeedBalanceCap float64        `mapstructure:"seed_balance_cap"`
	HTTP           HTTPConfig     `mapstructure:"http"`
	Database       DatabaseConfig `mapstructure:"database"`
	Worker         WorkerConfig   `mapstructure:"worker"`
	Kafka          KafkaConfig    `mapstructure:"kafka"`
}

func Load(path string) (*AppConfig, error) {
	// .env files are optional; environment wins either way.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SETTLEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path == "" {
		path = "config.yaml"
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		// The config file is optional; env and defaults carry a missing one.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "settleflow")
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("single_process", false)
	v.SetDefault("seed_balance_cap", 1000)

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 7574)

	v.SetDefault("database.conn_str", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "settleflow")
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("worker.id", "worker-1")
	v.SetDefault("worker.batch_size", 200)
	v.SetDefault("worker.start_event_id", 1)
	v.SetDefault("worker.cooldown_embedded", 20*time.Millisecond)
	v.SetDefault("worker.cooldown_standalone", 40*time.Millisecond)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "event_settled")
}
