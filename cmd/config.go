package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/teelink/clubauth/internal/app/risk"
	"github.com/teelink/clubauth/internal/app/session"
	"github.com/teelink/clubauth/internal/app/token"
)

type config struct {
	Port        string   `mapstructure:"port" json:"port"`
	DatabaseDSN string   `mapstructure:"database_dsn" json:"database_dsn"`
	LogLevel    logLevel `mapstructure:"log_level" json:"log_level"`
	MaxBodySize int64    `mapstructure:"max_body_size" json:"max_body_size"`
}

func loadConfig() config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("config")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var Cfg config
	if err := viper.Unmarshal(&Cfg); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	return Cfg
}

type sessionConfig struct {
	session.Config        `mapstructure:",squash"`
	ReaperIntervalMinutes int `mapstructure:"reaper_interval_minutes" json:"reaper_interval_minutes"`
}

func getSessionConfigs() sessionConfig {
	var sessionCfg sessionConfig
	if err := viper.Sub("session").Unmarshal(&sessionCfg); err != nil {
		panic(fmt.Errorf("fatal error session config: %w", err))
	}

	return sessionCfg
}

func getTokenConfigs() token.Config {
	var tokenCfg token.Config
	if err := viper.Sub("token").Unmarshal(&tokenCfg); err != nil {
		panic(fmt.Errorf("fatal error token config: %w", err))
	}

	return tokenCfg
}

func getRiskConfigs() risk.Config {
	// Missing keys fall back to the built-in weights.
	riskCfg := risk.DefaultConfig()
	if sub := viper.Sub("risk"); sub != nil {
		if err := sub.Unmarshal(&riskCfg); err != nil {
			panic(fmt.Errorf("fatal error risk config: %w", err))
		}
	}

	return riskCfg
}

type logLevel string

const (
	logLevelDebug logLevel = "debug"
	logLevelInfo  logLevel = "info"
	logLevelWarn  logLevel = "warn"
	logLevelError logLevel = "error"
)

func (l logLevel) zeroLog() zerolog.Level {
	switch l {
	case logLevelDebug:
		return zerolog.DebugLevel
	case logLevelInfo:
		return zerolog.InfoLevel
	case logLevelWarn:
		return zerolog.WarnLevel
	case logLevelError:
		return zerolog.ErrorLevel

	default:
		return zerolog.InfoLevel
	}
}
