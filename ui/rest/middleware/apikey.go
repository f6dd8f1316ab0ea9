package middleware

import (
	"strconv"

	domainRateLimit "github.com/AzielCF/wa-relay/domains/ratelimit"
	domainSession "github.com/AzielCF/wa-relay/domains/session"
	pkgError "github.com/AzielCF/wa-relay/pkg/error"
	"github.com/AzielCF/wa-relay/pkg/metrics"
	"github.com/AzielCF/wa-relay/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// LocalClientID is the Locals key holding the authorized session id.
const LocalClientID = "client_id"

type credentials struct {
	APIKey string `json:"api_key" form:"api_key"`
	Client string `json:"client" form:"client"`
}

// requestCredentials reads the key from the query, the x-api-key header, then
// the body (JSON or form), and the session id from the query, then the body.
func requestCredentials(c *fiber.Ctx) credentials {
	var body credentials
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			logrus.WithError(err).Debug("[AUTH] Request body carries no credentials")
		}
	}

	creds := credentials{APIKey: c.Query("api_key"), Client: c.Query("client")}
	if creds.APIKey == "" {
		creds.APIKey = c.Get("x-api-key")
	}
	if creds.APIKey == "" {
		creds.APIKey = body.APIKey
	}
	if creds.Client == "" {
		creds.Client = body.Client
	}
	return creds
}

// APIKey authorizes the request against the session it targets and applies
// the per-key rate limit. The rate-limit headers are always set.
func APIKey(sessions domainSession.ISessionUsecase, limiter domainRateLimit.ILimiter, m metrics.Metrics) fiber.Handler {
	if m == nil {
		m = metrics.Noop{}
	}
	return func(c *fiber.Ctx) error {
		creds := requestCredentials(c)

		clientID, err := sessions.Authorize(creds.APIKey, creds.Client)
		utils.PanicIfNeeded(err)

		res, err := limiter.Allow(c.UserContext(), creds.APIKey)
		if err != nil {
			logrus.WithError(err).Warn("[RATE_LIMIT] Limiter failed, allowing request")
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.UnixMilli(), 10))
		if res.Limited {
			m.IncRateLimited()
			logrus.WithField(LocalClientID, clientID).Debug("[RATE_LIMIT] Request limited")
			utils.PanicIfNeeded(pkgError.ErrRateLimitExceeded)
		}

		c.Locals(LocalClientID, clientID)
		return c.Next()
	}
}

// ClientID returns the session authorized by APIKey.
func ClientID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalClientID).(string)
	return id
}
