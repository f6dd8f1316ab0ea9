package validations

import (
	"context"

	domainMessage "github.com/AzielCF/wa-relay/domains/message"
	pkgError "github.com/AzielCF/wa-relay/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

func wrap(err error) error {
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateSendText(ctx context.Context, request domainMessage.SendTextRequest) error {
	return wrap(validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.To, validation.Required),
		validation.Field(&request.Message, validation.Required),
		validation.Field(&request.Mentions, validation.Each(validation.Required)),
	))
}

func ValidateSendMedia(ctx context.Context, request domainMessage.SendMediaRequest) error {
	return wrap(validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.To, validation.Required),
		validation.Field(&request.Data, validation.Required, is.Base64),
		validation.Field(&request.Mimetype, validation.Match(mimePattern)),
	))
}

func ValidateSendSticker(ctx context.Context, request domainMessage.SendStickerRequest) error {
	return wrap(validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.To, validation.Required),
		validation.Field(&request.Data, validation.Required, is.Base64),
	))
}

func ValidateSendLocation(ctx context.Context, request domainMessage.SendLocationRequest) error {
	return wrap(validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.To, validation.Required),
		validation.Field(&request.Latitude, validation.NotNil, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&request.Longitude, validation.NotNil, validation.Min(-180.0), validation.Max(180.0)),
	))
}

func ValidateSendContact(ctx context.Context, request domainMessage.SendContactRequest) error {
	return wrap(validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.To, validation.Required),
		validation.Field(&request.ContactNumber, validation.Required, validation.Match(phonePattern)),
	))
}

func ValidateSendPoll(ctx context.Context, request domainMessage.SendPollRequest) error {
	return wrap(validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.To, validation.Required),
		validation.Field(&request.Question, validation.Required),
		validation.Field(&request.Options,
			validation.Required,
			validation.Length(2, 12).Error("a poll needs between 2 and 12 options"),
			validation.Each(validation.Required),
		),
	))
}

func ValidateReact(ctx context.Context, request domainMessage.ReactRequest) error {
	return wrap(validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Emoji, validation.Required, validation.RuneLength(1, 16)),
	))
}

func ValidateSearch(ctx context.Context, request domainMessage.SearchRequest) error {
	return wrap(validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Query, validation.Required),
		validation.Field(&request.Limit, validation.Min(0), validation.Max(500)),
	))
}
