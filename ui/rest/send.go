package rest

import (
	domainMessage "github.com/AzielCF/wa-relay/domains/message"
	"github.com/AzielCF/wa-relay/pkg/utils"
	"github.com/AzielCF/wa-relay/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
)

type Send struct {
	Service domainMessage.IMessageUsecase
}

func InitRestSend(app fiber.Router, service domainMessage.IMessageUsecase) Send {
	rest := Send{Service: service}

	app.Post("/send", rest.SendText)
	app.Post("/send-media", rest.SendMedia)
	app.Post("/send-sticker", rest.SendSticker)
	app.Post("/send-location", rest.SendLocation)
	app.Post("/send-contact", rest.SendContact)
	app.Post("/send-poll", rest.SendPoll)
	app.Post("/message/:id/react", rest.React)
	return rest
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(utils.ResponseData{
		Status:  fiber.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: err.Error(),
	})
}

func (controller *Send) SendText(c *fiber.Ctx) error {
	var request domainMessage.SendTextRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, err)
	}

	response, err := controller.Service.SendText(c.UserContext(), middleware.ClientID(c), request)
	utils.PanicIfNeeded(err)
	return c.JSON(response)
}

func (controller *Send) SendMedia(c *fiber.Ctx) error {
	var request domainMessage.SendMediaRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, err)
	}

	response, err := controller.Service.SendMedia(c.UserContext(), middleware.ClientID(c), request)
	utils.PanicIfNeeded(err)
	return c.JSON(response)
}

func (controller *Send) SendSticker(c *fiber.Ctx) error {
	var request domainMessage.SendStickerRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, err)
	}

	response, err := controller.Service.SendSticker(c.UserContext(), middleware.ClientID(c), request)
	utils.PanicIfNeeded(err)
	return c.JSON(response)
}

func (controller *Send) SendLocation(c *fiber.Ctx) error {
	var request domainMessage.SendLocationRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, err)
	}

	response, err := controller.Service.SendLocation(c.UserContext(), middleware.ClientID(c), request)
	utils.PanicIfNeeded(err)
	return c.JSON(response)
}

func (controller *Send) SendContact(c *fiber.Ctx) error {
	var request domainMessage.SendContactRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, err)
	}

	response, err := controller.Service.SendContact(c.UserContext(), middleware.ClientID(c), request)
	utils.PanicIfNeeded(err)
	return c.JSON(response)
}

func (controller *Send) SendPoll(c *fiber.Ctx) error {
	var request domainMessage.SendPollRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, err)
	}

	response, err := controller.Service.SendPoll(c.UserContext(), middleware.ClientID(c), request)
	utils.PanicIfNeeded(err)
	return c.JSON(response)
}

func (controller *Send) React(c *fiber.Ctx) error {
	var request domainMessage.ReactRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, err)
	}

	err := controller.Service.React(c.UserContext(), middleware.ClientID(c), c.Params("id"), request)
	utils.PanicIfNeeded(err)
	return c.JSON(fiber.Map{"success": true})
}
