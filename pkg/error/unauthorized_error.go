package error

import "net/http"

type UnauthorizedError string

func (err UnauthorizedError) Error() string {
	return string(err)
}

func (err UnauthorizedError) ErrCode() string {
	return "UNAUTHORIZED"
}

func (err UnauthorizedError) StatusCode() int {
	return http.StatusUnauthorized
}

const (
	ErrInvalidAPIKey = UnauthorizedError("unauthorized: invalid or missing API key")
	ErrUnauthorized  = UnauthorizedError("unauthorized")
)
