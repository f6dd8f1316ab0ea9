package rest

import (
	domainMessage "github.com/AzielCF/wa-relay/domains/message"
	"github.com/AzielCF/wa-relay/pkg/utils"
	"github.com/AzielCF/wa-relay/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
)

type Chat struct {
	Service domainMessage.IMessageUsecase
}

func InitRestChat(app fiber.Router, service domainMessage.IMessageUsecase) Chat {
	rest := Chat{Service: service}

	app.Get("/chats", rest.List)
	app.Get("/chats/:id/messages", rest.Messages)
	app.Get("/messages/search", rest.Search)
	return rest
}

func (controller *Chat) List(c *fiber.Ctx) error {
	chats, err := controller.Service.Chats(c.UserContext(), middleware.ClientID(c))
	utils.PanicIfNeeded(err)
	return c.JSON(fiber.Map{"chats": chats})
}

func (controller *Chat) Messages(c *fiber.Ctx) error {
	messages, err := controller.Service.ListMessages(c.UserContext(), middleware.ClientID(c), c.Params("id"), c.QueryInt("limit", 50))
	utils.PanicIfNeeded(err)
	return c.JSON(fiber.Map{"messages": messages})
}

func (controller *Chat) Search(c *fiber.Ctx) error {
	results, err := controller.Service.Search(c.UserContext(), middleware.ClientID(c), domainMessage.SearchRequest{
		Query:  c.Query("query"),
		ChatID: c.Query("chatId"),
		Limit:  c.QueryInt("limit", 50),
	})
	utils.PanicIfNeeded(err)
	return c.JSON(fiber.Map{"messages": results})
}
