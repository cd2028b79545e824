// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the dinowiki CLI: the encyclopedia
// backend server and the research agent.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/LiangCY/dinosaur-wiki/internal/logging"
	"github.com/LiangCY/dinosaur-wiki/internal/secrets"
	"github.com/LiangCY/dinosaur-wiki/internal/server"
	"github.com/LiangCY/dinosaur-wiki/internal/store"
	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is built in PersistentPreRunE once the log level is known.
var logger = zap.NewNop()

// rootCmd is the base command for the dinowiki CLI.
var rootCmd = &cobra.Command{
	Use:   "dinowiki",
	Short: "Dinosaur encyclopedia backend and research agent",
	Long: `dinowiki serves the dinosaur encyclopedia REST API and runs the research
agent that fills it. The agent searches the web for a dinosaur, extracts and
validates a structured record with an LLM, and saves it through the API.

Use "serve" to run the backend, "research" to research dinosaurs against a
running backend, and "recommend" for a list of subjects worth researching.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		log, _, err := logging.New(viper.GetString("log_level"))
		if err != nil {
			return err
		}
		logger = log

		s, err := secrets.Load(".secrets/", logger)
		if err != nil {
			return err
		}
		set, err := secrets.ExportEnv(s)
		if err != nil {
			return err
		}
		if len(set) > 0 {
			logger.Info("loaded secrets", zap.Strings("env", set))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./dinowiki.yaml or ~/.config/dinowiki/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("dinowiki")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "dinowiki"))
		}
	}

	setDefaults(viper.GetViper())
	viper.SetEnvPrefix("DINOWIKI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so AutomaticEnv can see it during
// Unmarshal. Agent keys default to zero; the agent resolves them itself.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("server.addr", server.DefaultAddr)
	v.SetDefault("server.cors_origins", server.DefaultCORSOrigins)
	v.SetDefault("server.read_timeout", server.DefaultReadTimeout)
	v.SetDefault("server.write_timeout", server.DefaultWriteTimeout)
	v.SetDefault("server.research_rate", 0.2)
	v.SetDefault("server.research_burst", 3)

	v.SetDefault("store.driver", string(types.DriverSQLite))
	v.SetDefault("store.path", store.DefaultSQLitePath)
	v.SetDefault("store.dsn", "")

	v.SetDefault("search.max_results", 0)
	v.SetDefault("search.cache", string(types.CacheNone))
	v.SetDefault("search.cache_ttl", "1h")
	v.SetDefault("search.redis_addr", "localhost:6379")

	for key, zero := range map[string]any{
		"llm_provider": "", "openai_api_key": "", "openai_model": "", "openai_base_url": "",
		"gemini_api_key": "", "gemini_model": "", "tavily_api_key": "", "backend_url": "",
		"max_retries": 0, "retry_delay": time.Duration(0), "timeout": time.Duration(0),
		"log_level": "", "search_max_results": 0,
	} {
		v.SetDefault("agent."+key, zero)
	}
	// No default: an unset include_fossils must stay nil so the agent's
	// own environment lookup still applies.
	_ = v.BindEnv("agent.include_fossils", "DINOWIKI_AGENT_INCLUDE_FOSSILS")
}

// loadConfig decodes the merged config file, environment and flags.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Agent.SearchMaxResults == 0 {
		cfg.Agent.SearchMaxResults = cfg.Search.MaxResults
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
