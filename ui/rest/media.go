package rest

import (
	"fmt"

	domainMedia "github.com/AzielCF/wa-relay/domains/media"
	"github.com/AzielCF/wa-relay/pkg/utils"
	"github.com/AzielCF/wa-relay/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
)

type Media struct {
	Service domainMedia.IMediaUsecase
}

func InitRestMedia(app fiber.Router, service domainMedia.IMediaUsecase) Media {
	rest := Media{Service: service}

	app.Get("/media/:id/exists", rest.Exists)
	app.Get("/media/:id/download", rest.Download)
	return rest
}

func (controller *Media) Exists(c *fiber.Ctx) error {
	response, err := controller.Service.Exists(c.UserContext(), middleware.ClientID(c), c.Params("id"))
	utils.PanicIfNeeded(err)
	return c.JSON(response)
}

func (controller *Media) Download(c *fiber.Ctx) error {
	file, err := controller.Service.Download(c.UserContext(), middleware.ClientID(c), c.Params("id"))
	utils.PanicIfNeeded(err)

	if file.Path != "" {
		if err := c.SendFile(file.Path); err != nil {
			return err
		}
		if file.MimeType != "" {
			c.Set(fiber.HeaderContentType, file.MimeType)
		}
		return nil
	}

	name := file.FileName
	if name == "" {
		name = "file"
	}
	if file.MimeType != "" {
		c.Set(fiber.HeaderContentType, file.MimeType)
	}
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Send(file.Data)
}
