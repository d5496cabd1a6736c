package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the application configuration, assembled from the config file,
// environment variables and flag overrides. Secrets never live in the file:
// they come from the environment, normally loaded from a .env.<env> file.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Monzo      MonzoConfig      `mapstructure:"monzo"`
	LunchMoney LunchMoneyConfig `mapstructure:"lunch_money"`
	Ntfy       NtfyConfig       `mapstructure:"ntfy"`
	Lookups    LookupPaths      `mapstructure:"lookups"`
}

type DatabaseConfig struct {
	Path  string `mapstructure:"path"`
	Table string `mapstructure:"table"`
}

type MonzoConfig struct {
	APIURL       string `mapstructure:"api_url"`
	AuthURL      string `mapstructure:"auth_url"`
	TokensPath   string `mapstructure:"tokens_path"`
	AccountsPath string `mapstructure:"accounts_path"`
	ClientID     string `mapstructure:"-"`
	ClientSecret string `mapstructure:"-"`
}

type LunchMoneyConfig struct {
	APIURL    string `mapstructure:"api_url"`
	ChunkSize int    `mapstructure:"chunk_size"`
	Token     string `mapstructure:"-"`
}

type NtfyConfig struct {
	URL   string `mapstructure:"url"`
	Topic string `mapstructure:"topic"`
}

// LookupPaths locates the external lookup-table files.
type LookupPaths struct {
	PotsPath                 string `mapstructure:"pots_path"`
	CategoriesPath           string `mapstructure:"categories_path"`
	LunchMoneyCategoriesPath string `mapstructure:"lunch_money_categories_path"`
	AssetsPath               string `mapstructure:"assets_path"`
}

// Build loads the configuration: config file (config.yaml in the working
// directory unless overridden), then flag overrides, then secrets from the
// environment.
func Build(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("database.table", "transactions")
	v.SetDefault("monzo.api_url", "https://api.monzo.com")
	v.SetDefault("lunch_money.api_url", "https://dev.lunchmoney.app/v1")
	v.SetDefault("lunch_money.chunk_size", 1)
	v.SetDefault("ntfy.url", "https://ntfy.sh")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is fine; flags and env can carry
		// everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Monzo.ClientID = os.Getenv("MONZO_CLIENT_ID")
	cfg.Monzo.ClientSecret = os.Getenv("MONZO_CLIENT_SECRET")
	cfg.LunchMoney.Token = os.Getenv("LUNCH_MONEY_ACCESS_TOKEN")
	return &cfg, nil
}
