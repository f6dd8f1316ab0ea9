package rest

import (
	domainSession "github.com/AzielCF/wa-relay/domains/session"
	"github.com/AzielCF/wa-relay/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Client struct {
	Service domainSession.ISessionUsecase
}

func InitRestClient(app fiber.Router, service domainSession.ISessionUsecase) Client {
	rest := Client{Service: service}

	app.Get("/clients", rest.List)
	app.Post("/clients", rest.Create)
	app.Delete("/clients/:id", rest.Delete)
	app.Post("/clients/:id/rotate-key", rest.RotateKey)
	return rest
}

func (controller *Client) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"clients": controller.Service.List()})
}

type createClientRequest struct {
	ID string `json:"id"`
}

func (controller *Client) Create(c *fiber.Ctx) error {
	var request createClientRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&request); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(utils.ResponseData{Status: fiber.StatusBadRequest, Code: "BAD_REQUEST", Message: err.Error()})
		}
	}

	info, err := controller.Service.Create(c.UserContext(), request.ID)
	utils.PanicIfNeeded(err)

	return c.JSON(fiber.Map{"success": true, "id": info.ID, "apiKey": info.APIKey})
}

func (controller *Client) Delete(c *fiber.Ctx) error {
	err := controller.Service.Delete(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(fiber.Map{"success": true})
}

type rotateKeyRequest struct {
	CurrentAPIKey string `json:"current_api_key"`
}

// RotateKey is allowed to a caller that passed basic auth or presents the
// current key.
func (controller *Client) RotateKey(c *fiber.Ctx) error {
	var request rotateKeyRequest
	if len(c.Body()) > 0 {
		_ = c.BodyParser(&request)
	}
	if request.CurrentAPIKey == "" {
		request.CurrentAPIKey = c.Query("current_api_key")
	}
	if request.CurrentAPIKey == "" {
		request.CurrentAPIKey = c.Get("x-api-key")
	}

	_, uiUser := c.Locals("username").(string)
	key, err := controller.Service.RotateKey(c.UserContext(), c.Params("id"), domainSession.Credential{
		UIAuthenticated: uiUser,
		CurrentAPIKey:   request.CurrentAPIKey,
	})
	utils.PanicIfNeeded(err)

	return c.JSON(fiber.Map{"success": true, "apiKey": key})
}
