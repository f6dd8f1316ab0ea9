package cmd

import (
	"os"
	"strings"
	"time"

	coreconfig "github.com/AzielCF/wa-relay/core/config"
	"github.com/AzielCF/wa-relay/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wa-relay",
	Short: "Multi-client WhatsApp relay over REST and SSE",
	Long: `wa-relay runs several linked WhatsApp accounts side by side and exposes
them over an HTTP API with per-client keys, a live event stream and durable message history.`,
	Run: restServer,
}

func init() {
	if _, err := coreconfig.LoadConfig(); err != nil {
		logrus.Fatalf("[CONFIG] %v", err)
	}

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()

	cobra.OnInitialize(initEnvConfig, initApp)
}

// initEnvConfig applies flag overrides on top of the environment.
func initEnvConfig() {
	cfg := coreconfig.Global

	if port := viper.GetString("app_port"); port != "" {
		cfg.App.Port = port
	}
	if viper.GetBool("app_debug") {
		cfg.App.Debug = true
	}
	if creds := viper.GetString("ui_credentials"); creds != "" {
		cfg.App.UICredentials = creds
	}
	if limit := viper.GetInt("rate_limit_per_minute"); limit > 0 {
		cfg.RateLimit.PerMinute = limit
	}
	if dbURL := viper.GetString("database_url"); dbURL != "" {
		cfg.Database.URL = dbURL
		if os.Getenv("DB_DRIVER") == "" {
			cfg.Database.Driver = "postgres"
		}
	}
	if vk := viper.GetString("valkey"); vk != "" {
		if strings.Contains(vk, "://") {
			cfg.Database.ValkeyURL = vk
		} else {
			cfg.Database.ValkeyAddress = vk
		}
		cfg.Database.ValkeyEnabled = true
	}
}

func initFlags() {
	flags := rootCmd.PersistentFlags()

	flags.StringP("port", "p", "", "change port number with --port <number> | example: --port=3000")
	flags.BoolP("debug", "d", false, "enable debug logging | example: --debug=true")
	flags.String("ui-credentials", "", "basic auth for client management routes | example: --ui-credentials=admin:secret")
	flags.Int("rate-limit", 0, "requests per minute allowed per API key | example: --rate-limit=120")
	flags.String("db-url", "", "postgres connection string, sqlite is used when empty")
	flags.String("valkey", "", "valkey address or redis:// URL for the shared rate limiter")

	_ = viper.BindPFlag("app_port", flags.Lookup("port"))
	_ = viper.BindPFlag("app_debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("ui_credentials", flags.Lookup("ui-credentials"))
	_ = viper.BindPFlag("rate_limit_per_minute", flags.Lookup("rate-limit"))
	_ = viper.BindPFlag("database_url", flags.Lookup("db-url"))
	_ = viper.BindPFlag("valkey", flags.Lookup("valkey"))
}

func initApp() {
	cfg := coreconfig.Global
	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := utils.CreateFolder(cfg.Paths.Storages, cfg.Paths.Media); err != nil {
		logrus.Errorln(err)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
