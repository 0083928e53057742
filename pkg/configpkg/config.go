// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
//
// The values are read by viper from a config file or environment variables.
type Config struct {
	Environment string `mapstructure:"GO_ENV"`

	TCPAddress     string        `mapstructure:"TCP_ADDRESS"`
	ServerAddress  string        `mapstructure:"SERVER_ADDRESS"`
	WorkerPoolSize int           `mapstructure:"WORKER_POOL_SIZE"`
	InterestRate   float64       `mapstructure:"INTEREST_RATE"`
	InterestPeriod time.Duration `mapstructure:"INTEREST_PERIOD"`

	TokenType           string        `mapstructure:"TOKEN_TYPE"`
	TokenSymmetricKey   string        `mapstructure:"TOKEN_SYMMETRIC_KEY"`
	AccessTokenDuration time.Duration `mapstructure:"ACCESS_TOKEN_DURATION"`
	AdminKey            string        `mapstructure:"ADMIN_KEY"`

	SnapshotDriver string `mapstructure:"SNAPSHOT_DRIVER"`
	AccountsFile   string `mapstructure:"ACCOUNTS_FILE"`
	LedgerFile     string `mapstructure:"LEDGER_FILE"`
	DBDriver       string `mapstructure:"DB_DRIVER"`
	DBSource       string `mapstructure:"DB_SOURCE"`
}

var defaults = map[string]any{
	"GO_ENV":                "production",
	"TCP_ADDRESS":           ":5000",
	"SERVER_ADDRESS":        ":8080",
	"WORKER_POOL_SIZE":      10,
	"INTEREST_RATE":         0.025,
	"INTEREST_PERIOD":       time.Minute,
	"TOKEN_TYPE":            "paseto",
	"ACCESS_TOKEN_DURATION": 15 * time.Minute,
	"SNAPSHOT_DRIVER":       "file",
	"ACCOUNTS_FILE":         "accounts.txt",
	"LEDGER_FILE":           "transactions.txt",
	"DB_DRIVER":             "postgres",
}

// Load read configuration from file or environment variables.
//
// A missing app.env file is not an error; defaults and the environment apply.
func Load(path string) (Config, error) {
	var c Config

	v := viper.New()

	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Unmarshal only sees keys viper knows about.
	for _, key := range []string{"TOKEN_SYMMETRIC_KEY", "ADMIN_KEY", "DB_SOURCE"} {
		if err := v.BindEnv(key); err != nil {
			return c, err
		}
	}

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, nil
}
