package controllers

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// jsonError is the error envelope every API handler returns.
func jsonError(code, message string) map[string]interface{} {
	return map[string]interface{}{"error": code, "message": message}
}
