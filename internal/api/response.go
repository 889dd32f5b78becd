// Package api defines the uniform response envelope returned by every
// endpoint. Clients branch on Success; StatusCode always carries the numeric
// HTTP status verbatim.
package api

import "github.com/gin-gonic/gin"

// Response is the envelope wrapping every API result, success or failure.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
}

// New builds an envelope. An empty message defaults to "Success"; a nil
// payload is replaced with an empty object so Data is always present.
func New(statusCode int, success bool, message string, data any) Response {
	if message == "" {
		message = "Success"
	}
	if data == nil {
		data = gin.H{}
	}
	return Response{
		StatusCode: statusCode,
		Success:    success,
		Message:    message,
		Data:       data,
	}
}

// Respond writes a success envelope with the given status and payload.
func Respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, New(status, true, message, data))
}

// RespondError writes a failure envelope with the given status.
func RespondError(c *gin.Context, status int, message string) {
	c.JSON(status, New(status, false, message, nil))
}
