package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Mail     MailConfig     `mapstructure:"mail"`
	Session  SessionConfig  `mapstructure:"session"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
	// BaseURL is the externally reachable address, used in activation and
	// password-reset links sent by mail.
	BaseURL string `mapstructure:"base_url"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type BrokerConfig struct {
	AppKey    string `mapstructure:"app_key"`
	AppSecret string `mapstructure:"app_secret"`
	Cluster   string `mapstructure:"cluster"`
}

type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Sender   string `mapstructure:"sender"`
	Password string `mapstructure:"password"`
	Enabled  bool   `mapstructure:"enabled"`
}

type SessionConfig struct {
	TimeoutHours int `mapstructure:"timeout_hours"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":5555")
	viper.SetDefault("server.rpc_address", ":5556")
	viper.SetDefault("server.metrics_address", ":9100")
	viper.SetDefault("server.base_url", "http://localhost:5555")
	viper.SetDefault("session.timeout_hours", 3)
	viper.SetDefault("mail.port", 465)
	viper.SetDefault("mail.enabled", false)

	viper.AutomaticEnv()

	if err = viper.ReadInConfig(); err != nil {
		// Defaults and environment variables carry a missing file.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
