// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the evidence-gateway CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/evidencemed/evidence-gateway/internal/secrets"
	"github.com/evidencemed/evidence-gateway/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the evidence-gateway CLI.
var rootCmd = &cobra.Command{
	Use:   "evidence-gateway",
	Short: "PubMed evidence search gateway",
	Long: `evidence-gateway serves curated PubMed searches for health conditions.
It maps condition identifiers to hand-tuned boolean search expressions, runs
the two-phase E-utilities flow (ESearch then EFetch), parses the returned
records into a stable article shape, and caches result pages in SQLite.

Run "serve" to expose the HTTP API, or "search" for a one-shot query from
the command line.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./evidence-gateway.yaml or ~/.config/evidence-gateway/config.yaml)")
}

func initConfig() {
	// A .env file is optional and never overrides the real environment.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("evidence-gateway")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "evidence-gateway"))
		}
	}

	viper.SetEnvPrefix("EVIDENCE_GATEWAY")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadGatewayConfig assembles the full configuration from viper, overlays
// file-based secrets, and fills defaults.
func loadGatewayConfig() types.GatewayConfig {
	cfg := types.GatewayConfig{
		Upstream: types.UpstreamConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("upstream.timeout"),
				UserAgent: viper.GetString("upstream.user_agent"),
			},
			APIKey:            viper.GetString("upstream.api_key"),
			Tool:              viper.GetString("upstream.tool"),
			Email:             viper.GetString("upstream.email"),
			QualityFilter:     viper.GetString("upstream.quality_filter"),
			RequestsPerSecond: viper.GetFloat64("upstream.requests_per_second"),
		},
		Search: types.SearchConfig{
			DefaultPageSize: viper.GetInt("search.default_page_size"),
			MaxPageSize:     viper.GetInt("search.max_page_size"),
			ConditionsFile:  viper.GetString("search.conditions_file"),
		},
		Cache: types.CacheConfig{
			Path:          viper.GetString("cache.path"),
			TTL:           viper.GetDuration("cache.ttl"),
			PruneInterval: viper.GetDuration("cache.prune_interval"),
		},
		Server: types.ServerConfig{
			Addr:           viper.GetString("server.addr"),
			Mode:           viper.GetString("server.mode"),
			AllowedOrigins: viper.GetStringSlice("server.allowed_origins"),
		},
	}
	secrets.Apply(&cfg.Upstream, loadedSecrets)
	cfg.ApplyDefaults()
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
