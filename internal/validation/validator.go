// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

// Package validation wraps go-playground/validator v10 with a shared
// instance, the custom rules the agent needs, and error messages in the
// local API's VALIDATION_ERROR format.
//
// Custom tags:
//   - keysegment: non-empty, no '/', no surrounding whitespace. Outlet and
//     entity ids become store key segments and must satisfy it.
//   - operation: one of create, update, delete.
//
// Example:
//
//	type networkRequest struct {
//	    Online *bool `json:"online" validate:"required"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    ...
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed field.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Message string
}

// RequestValidationError collects every failed field of one struct.
type RequestValidationError struct {
	Fields []FieldError
}

func (ve *RequestValidationError) Error() string {
	if len(ve.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(ve.Fields))
	for i := range ve.Fields {
		parts[i] = ve.Fields[i].Message
	}
	return strings.Join(parts, "; ")
}

// APIError is the JSON error body used by the local API.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ToAPIError converts the failure to the API error format. A single field
// is reported flat; several are listed under details.fields.
func (ve *RequestValidationError) ToAPIError() *APIError {
	apiErr := &APIError{Code: "VALIDATION_ERROR", Message: "Validation failed"}
	switch len(ve.Fields) {
	case 0:
	case 1:
		f := ve.Fields[0]
		apiErr.Message = f.Message
		apiErr.Details = map[string]interface{}{"field": f.Field, "tag": f.Tag}
	default:
		list := make([]map[string]interface{}, len(ve.Fields))
		parts := make([]string, len(ve.Fields))
		for i, f := range ve.Fields {
			list[i] = map[string]interface{}{"field": f.Field, "tag": f.Tag, "message": f.Message}
			parts[i] = f.Field + ": " + f.Message
		}
		apiErr.Message = strings.Join(parts, "; ")
		apiErr.Details = map[string]interface{}{"fields": list}
	}
	return apiErr
}

// GetValidator returns the shared validator, registering custom rules on
// first use.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Registration only fails for empty tags or nil funcs.
		_ = validate.RegisterValidation("keysegment", validateKeySegment)
		_ = validate.RegisterValidation("operation", validateOperation)
	})
	return validate
}

// IsKeySegment reports whether s can be used as a store key segment.
func IsKeySegment(s string) bool {
	return s != "" && s == strings.TrimSpace(s) && !strings.Contains(s, "/")
}

func validateKeySegment(fl validator.FieldLevel) bool {
	return IsKeySegment(fl.Field().String())
}

func validateOperation(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "create", "update", "delete":
		return true
	}
	return false
}

// ValidateStruct validates s with the shared validator. It returns nil when
// s is valid.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestValidationError{
			Fields: []FieldError{{Message: err.Error()}},
		}
	}

	out := &RequestValidationError{Fields: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	sized := ""
	if fe.Kind() == reflect.String {
		sized = " characters"
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "url":
		return field + " must be a valid URL"
	case "http_url":
		return field + " must be an http or https URL"
	case "keysegment":
		return field + " must be non-empty and must not contain '/'"
	case "operation":
		return field + " must be one of: create, update, delete"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", field, param, sized)
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", field, param, sized)
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
