package middleware

import (
	"errors"
	"fmt"

	pkgError "github.com/AzielCF/wa-relay/pkg/error"
	"github.com/AzielCF/wa-relay/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Recovery renders values raised through utils.PanicIfNeeded. A GenericError
// keeps its own status, anything else becomes a 500.
func Recovery() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}

			res := utils.ResponseData{
				Status:  fiber.StatusInternalServerError,
				Code:    "INTERNAL_SERVER_ERROR",
				Message: fmt.Sprintf("%v", recovered),
			}

			var generic pkgError.GenericError
			if err, ok := recovered.(error); ok && errors.As(err, &generic) {
				res.Status = generic.StatusCode()
				res.Code = generic.ErrCode()
				res.Message = generic.Error()
			}

			if res.Status >= fiber.StatusInternalServerError {
				logrus.WithField("path", ctx.Path()).Errorf("[APP] Request failed: %v", recovered)
			} else {
				logrus.WithField("path", ctx.Path()).Debugf("[APP] Request rejected: %s", res.Message)
			}
			_ = ctx.Status(res.Status).JSON(res)
		}()

		return ctx.Next()
	}
}
