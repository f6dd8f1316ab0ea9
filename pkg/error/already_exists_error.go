package error

import "net/http"

type AlreadyExistsError string

func (err AlreadyExistsError) Error() string {
	return string(err)
}

func (err AlreadyExistsError) ErrCode() string {
	return "ALREADY_EXISTS"
}

func (err AlreadyExistsError) StatusCode() int {
	return http.StatusBadRequest
}

const ErrSessionExists = AlreadyExistsError("client already exists")
