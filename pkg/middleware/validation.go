package middleware

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// InitValidator initializes the validator with custom validators
func InitValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		registerCustom(validate)

		// Set up Gin's binding validator too so ShouldBindJSON picks up
		// the custom tags.
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			registerCustom(v)
		}
	})

	return validate
}

func registerCustom(v *validator.Validate) {
	_ = v.RegisterValidation("sku", validateSKU)
	_ = v.RegisterValidation("location_id", validateLocationID)
	_ = v.RegisterValidation("batch_number", validateBatchNumber)
	_ = v.RegisterValidation("movement_number", validateMovementNumber)

	// Use JSON tag names for error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
}

// GetValidator returns the singleton validator instance
func GetValidator() *validator.Validate {
	if validate == nil {
		return InitValidator()
	}
	return validate
}

var (
	skuRegex            = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{2,49}$`)
	locationIDRegex     = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)
	batchNumberRegex    = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)
	movementNumberRegex = regexp.MustCompile(`^[A-Z]{1,8}-\d{8}-\d{4,}$`)
)

func validateSKU(fl validator.FieldLevel) bool {
	return skuRegex.MatchString(fl.Field().String())
}

func validateLocationID(fl validator.FieldLevel) bool {
	return locationIDRegex.MatchString(fl.Field().String())
}

func validateBatchNumber(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return batchNumberRegex.MatchString(value)
}

func validateMovementNumber(fl validator.FieldLevel) bool {
	return movementNumberRegex.MatchString(fl.Field().String())
}

// ValidationErrorDetails converts validator errors into a field -> message map.
func ValidationErrorDetails(err error) map[string]string {
	details := make(map[string]string)
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return details
	}
	for _, fieldErr := range validationErrors {
		details[fieldErr.Field()] = "failed validation: " + fieldErr.Tag()
	}
	return details
}
