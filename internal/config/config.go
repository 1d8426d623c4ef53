package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Signing SigningConfig `mapstructure:"signing"`
	Bot     BotConfig     `mapstructure:"bot"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host" validate:"required"`
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type SigningConfig struct {
	// Hex-encoded Ed25519 public key. Empty disables verification; the
	// verifier logs that state loudly.
	PublicKey string `mapstructure:"public_key" validate:"omitempty,hexadecimal,len=64"`
}

type BotConfig struct {
	Token          string        `mapstructure:"token"`
	APIBase        string        `mapstructure:"api_base" validate:"omitempty,url"`
	APITimeout     time.Duration `mapstructure:"api_timeout"`
	SettleDelay    time.Duration `mapstructure:"settle_delay"`
	WelcomeMessage string        `mapstructure:"welcome_message" validate:"required"`
}

type LedgerConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type StorageConfig struct {
	Driver string       `mapstructure:"driver" validate:"oneof=sqlite"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("hookgate")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/hookgate")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("HOOKGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints, yielding readable messages keyed by
// config path rather than Go struct names.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, fmt.Sprintf("%s failed on %q", strings.ToLower(e.Namespace()), e.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(messages, "; "))
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("signing.public_key", "")

	viper.SetDefault("bot.token", "")
	viper.SetDefault("bot.api_base", "https://discord.com/api/v10")
	viper.SetDefault("bot.api_timeout", 15*time.Second)
	viper.SetDefault("bot.settle_delay", 2*time.Second)
	viper.SetDefault("bot.welcome_message",
		"Hey there! Thanks for connecting. I can help you track check-ins, tasks and schedules — say hi any time to get started.")

	viper.SetDefault("ledger.path", "./data/welcomed.json")

	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.sqlite.path", "./data/hookgate.db")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}
