package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	coreconfig "github.com/AzielCF/wa-relay/core/config"
	"github.com/AzielCF/wa-relay/ui/rest"
	"github.com/AzielCF/wa-relay/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the relay API over http",
	Run:   restServer,
}

func init() {
	rootCmd.AddCommand(restCmd)
}

func restServer(_ *cobra.Command, _ []string) {
	cfg := coreconfig.Global

	if err := buildApp(true); err != nil {
		logrus.Fatalf("[APP] %v", err)
	}

	ctx := context.Background()
	runMigration(ctx)
	if err := sessionUsecase.Restore(ctx); err != nil {
		logrus.WithError(err).Error("[APP] Failed to restore clients")
	}

	app := fiber.New(fiber.Config{
		Network:               "tcp",
		AppName:               "wa-relay " + cfg.App.Version,
		BodyLimit:             64 * 1024 * 1024,
		DisableStartupMessage: false,
		ServerHeader:          "Hidden",
	})

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(cfg.App.CorsAllowedOrigins, ", "),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-API-Key, X-Request-ID",
		ExposeHeaders: "X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset",
	}))
	app.Use(middleware.Recovery())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))
	if cfg.App.Debug {
		app.Use(logger.New())
	}

	rest.Register(app, rest.Deps{
		Sessions:      sessionUsecase,
		Messages:      messageUsecase,
		Media:         mediaUsecase,
		Limiter:       rateLimiter,
		Bus:           eventBus,
		Pool:          eventPool,
		Prom:          promMetrics,
		Metrics:       promMetrics,
		UICredentials: cfg.App.UICredentials,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Reception of termination signal, shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Errorln("Failed to start: ", err.Error())
	}
	StopApp()
}
