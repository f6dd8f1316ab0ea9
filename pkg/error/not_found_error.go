package error

import "net/http"

type NotFoundError string

func (err NotFoundError) Error() string {
	return string(err)
}

func (err NotFoundError) ErrCode() string {
	return "NOT_FOUND_ERROR"
}

func (err NotFoundError) StatusCode() int {
	return http.StatusNotFound
}

const (
	ErrSessionNotFound = NotFoundError("client not found")
	ErrMessageNotFound = NotFoundError("message not found")
	ErrMediaNotFound   = NotFoundError("media not found or message has no media")
	ErrMediaFileGone   = NotFoundError("media file not found on disk")
	ErrQRNotAvailable  = NotFoundError("QR not available")
)
