package rest

import (
	domainSession "github.com/AzielCF/wa-relay/domains/session"
	pkgError "github.com/AzielCF/wa-relay/pkg/error"
	"github.com/AzielCF/wa-relay/pkg/utils"
	"github.com/AzielCF/wa-relay/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
)

type Status struct {
	Service domainSession.ISessionUsecase
}

func InitRestStatus(app fiber.Router, service domainSession.ISessionUsecase) Status {
	rest := Status{Service: service}

	app.Get("/status", rest.Get)
	app.Put("/status", rest.SetMessage)
	return rest
}

// InitRestQR registers the pairing image route, which needs no key.
func InitRestQR(app fiber.Router, service domainSession.ISessionUsecase) Status {
	rest := Status{Service: service}
	app.Get("/qr", rest.QR)
	return rest
}

func (controller *Status) Get(c *fiber.Ctx) error {
	info, err := controller.Service.Get(middleware.ClientID(c))
	utils.PanicIfNeeded(err)

	return c.JSON(fiber.Map{
		"clientId":      info.ID,
		"status":        info.Status,
		"uptime":        info.Uptime,
		"messagesSaved": info.MessagesSaved,
		"memoryUsage":   info.MemoryUsage,
	})
}

type statusMessageRequest struct {
	Message string `json:"message"`
}

func (controller *Status) SetMessage(c *fiber.Ctx) error {
	var request statusMessageRequest
	_ = c.BodyParser(&request)
	if request.Message == "" {
		utils.PanicIfNeeded(pkgError.ValidationError("message: cannot be blank"))
	}

	err := controller.Service.SetStatusMessage(c.UserContext(), middleware.ClientID(c), request.Message)
	utils.PanicIfNeeded(err)

	return c.JSON(fiber.Map{"success": true, "status": request.Message})
}

func (controller *Status) QR(c *fiber.Ctx) error {
	id := c.Query("client", domainSession.DefaultID)
	png, err := controller.Service.QRImage(id)
	utils.PanicIfNeeded(err)

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(png)
}
