package error

import "net/http"

// InternalServerError wraps engine and IO failures that reach the caller.
type InternalServerError string

func (err InternalServerError) Error() string {
	return string(err)
}

func (err InternalServerError) ErrCode() string {
	return "INTERNAL_SERVER_ERROR"
}

func (err InternalServerError) StatusCode() int {
	return http.StatusInternalServerError
}

// EngineFailure reports an error raised by the automation engine.
func EngineFailure(err error) InternalServerError {
	return InternalServerError(err.Error())
}
