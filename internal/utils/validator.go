// internal/utils/validator.go
package utils

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nutriforum/pricing-backend/internal/models"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	validate.RegisterValidation("price_unit", validatePriceUnit)
	validate.RegisterValidation("price_category", validatePriceCategory)
	validate.RegisterValidation("report_status", validateReportStatus)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validatePriceUnit(fl validator.FieldLevel) bool {
	return models.PriceUnit(fl.Field().String()).Valid()
}

func validatePriceCategory(fl validator.FieldLevel) bool {
	return models.PriceCategory(fl.Field().String()).Valid()
}

func validateReportStatus(fl validator.FieldLevel) bool {
	return models.ReportStatus(fl.Field().String()).Valid()
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "min":
		return e.Field() + " must be at least " + e.Param() + " characters"
	case "max":
		return e.Field() + " must be at most " + e.Param() + " characters"
	case "len":
		return e.Field() + " must be exactly " + e.Param() + " characters"
	case "price_unit":
		return "Price unit must be per_100g or per_unit"
	case "price_category":
		return "Category must be tier_1, tier_2 or tier_3"
	case "report_status":
		return "Status must be open, in_review or resolved"
	default:
		return e.Field() + " is invalid"
	}
}
