// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
//
// The values are read by viper from a config file or environment variables.
type Config struct {
	StoreDriver     string        `mapstructure:"STORE_DRIVER"`
	DBDriver        string        `mapstructure:"DB_DRIVER"`
	DBSource        string        `mapstructure:"DB_SOURCE"`
	ServerAddress   string        `mapstructure:"SERVER_ADDRESS"`
	Environment     string        `mapstructure:"GO_ENV"`
	EventsDriver    string        `mapstructure:"EVENTS_DRIVER"`
	KafkaBrokers    string        `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic      string        `mapstructure:"KAFKA_TOPIC"`
	NATSURL         string        `mapstructure:"NATS_URL"`
	NATSSubject     string        `mapstructure:"NATS_SUBJECT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

// EnvDevelopment switches the logger to human readable output.
const EnvDevelopment = "development"

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Events drivers.
const (
	EventsNone  = "none"
	EventsKafka = "kafka"
	EventsNATS  = "nats"
)

// Brokers splits the comma separated KAFKA_BROKERS value.
func (c Config) Brokers() []string {
	var brokers []string

	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	return brokers
}

// LoadEnvFile loads the given dotenv files into the process environment.
//
// Variables that are already set are not overridden, so the real environment wins.
func LoadEnvFile(files ...string) error {
	for _, f := range files {
		if f == "" {
			continue
		}

		if _, err := os.Stat(f); err != nil {
			return err
		}

		if err := godotenv.Load(f); err != nil {
			return err
		}
	}

	return nil
}

// Load reads configuration from file or environment variables.
func Load(path string) (Config, error) {
	var c Config

	v := viper.New()

	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	v.SetDefault("STORE_DRIVER", StoreMemory)
	v.SetDefault("SERVER_ADDRESS", "0.0.0.0:8080")
	v.SetDefault("GO_ENV", "production")
	v.SetDefault("EVENTS_DRIVER", EventsNone)
	v.SetDefault("KAFKA_TOPIC", "ledger.entries")
	v.SetDefault("NATS_SUBJECT", "ledger.entries")
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)

	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		return c, err
	}

	err = v.Unmarshal(&c)
	if err != nil {
		return c, err
	}

	return c, nil
}
