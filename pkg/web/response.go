// Package web defines common components for a web application.
package web

import "github.com/go-playground/validator/v10"

// Response holds the common response envelope for all APIs.
type Response struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Error wraps a given err into the common response envelope.
func Error(err error) Response {
	return Response{Error: err.Error()}
}

// GetErrorMsg returns a human readable message for a binding validation error.
func GetErrorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return " field is required"
	case "min":
		return " field value must be greater or equal to " + fe.Param()
	case "max":
		return " field value must be less or equal to " + fe.Param()
	case "gt":
		return " field value must be greater than " + fe.Param()
	case "currency":
		return " field value must be a supported currency"
	case "balance":
		return " field value must be a non-negative decimal"
	case "oneof":
		return " field value must be one of: " + fe.Param()
	case "datetime":
		return " field value must match the layout " + fe.Param()
	}

	return " field is invalid"
}
