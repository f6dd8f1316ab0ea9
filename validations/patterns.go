package validations

import "regexp"

var (
	mimePattern  = regexp.MustCompile(`^[\w.+-]+/[\w.+-]+(\s*;.*)?$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9\s-]{3,}$`)
	// session ids end up in file names and URLs
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)
