package rest

import (
	"strings"
	"time"

	domainMedia "github.com/AzielCF/wa-relay/domains/media"
	domainMessage "github.com/AzielCF/wa-relay/domains/message"
	domainRateLimit "github.com/AzielCF/wa-relay/domains/ratelimit"
	domainSession "github.com/AzielCF/wa-relay/domains/session"
	"github.com/AzielCF/wa-relay/pkg/eventbus"
	"github.com/AzielCF/wa-relay/pkg/metrics"
	"github.com/AzielCF/wa-relay/pkg/msgworker"
	"github.com/AzielCF/wa-relay/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/sirupsen/logrus"
)

type Deps struct {
	Sessions domainSession.ISessionUsecase
	Messages domainMessage.IMessageUsecase
	Media    domainMedia.IMediaUsecase
	Limiter  domainRateLimit.ILimiter
	Bus      *eventbus.Bus
	Pool     *msgworker.Pool
	Prom     *metrics.Prom
	Metrics  metrics.Metrics
	// UICredentials is "user:password". When set, session management
	// requires basic auth.
	UICredentials string
	Heartbeat     time.Duration
}

// skipUIAuth lets preflight requests through, and key rotation requests that
// carry no basic credentials so the current key can authorize them.
func skipUIAuth(c *fiber.Ctx) bool {
	if c.Method() == fiber.MethodOptions {
		return true
	}
	return c.Method() == fiber.MethodPost &&
		strings.HasSuffix(c.Path(), "/rotate-key") &&
		c.Get(fiber.HeaderAuthorization) == ""
}

// Register mounts every route on app. Routes that need an API key are
// registered last, behind the key middleware.
func Register(app *fiber.App, deps Deps) {
	if user, pass, ok := strings.Cut(deps.UICredentials, ":"); ok && user != "" {
		app.Use("/clients", basicauth.New(basicauth.Config{
			Users: map[string]string{user: pass},
			Next: skipUIAuth,
		}))
	} else if deps.UICredentials != "" {
		logrus.Warn("[APP] UI_CREDENTIALS must be user:password, management routes stay open")
	}

	InitRestClient(app, deps.Sessions)
	InitRestQR(app, deps.Sessions)
	InitRestEvents(app, deps.Bus, deps.Heartbeat)
	InitRestMonitoring(app, deps.Pool, deps.Prom)

	protected := app.Group("", middleware.APIKey(deps.Sessions, deps.Limiter, deps.Metrics))
	InitRestStatus(protected, deps.Sessions)
	InitRestSend(protected, deps.Messages)
	InitRestChat(protected, deps.Messages)
	InitRestMedia(protected, deps.Media)
}
