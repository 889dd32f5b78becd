// Package common defines the sentinel errors shared across the service
// layers. Callers match them with errors.Is; handlers translate them into
// response envelopes at the transport boundary.
package common

import "errors"

var (
	// repository-level errors
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// service-level errors
	ErrorInvalidCredentials = errors.New("invalid credentials")
	ErrorUpload             = errors.New("upload failed")
	ErrorInternal           = errors.New("internal error")
)
