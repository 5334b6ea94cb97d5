package validator

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/driveschool-hub/scheduling-service/internal/models"
)

// Validator handles request and business rule validation
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a single field validation failure
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// New creates a validator with the scheduling business rules registered
func New() *Validator {
	validate := validator.New()

	v := &Validator{validate: validate}
	v.registerBusinessRules()

	return v
}

// Validate validates a struct against its tags
func (v *Validator) Validate(s interface{}) ValidationErrors {
	var errors ValidationErrors

	err := v.validate.Struct(s)
	if err != nil {
		for _, err := range err.(validator.ValidationErrors) {
			errors = append(errors, ValidationError{
				Field:   FormatFieldName(err.Field()),
				Message: v.getErrorMessage(err),
				Value:   err.Value(),
				Rule:    err.Tag(),
			})
		}
	}

	return errors
}

// ValidateSlotCreate validates slot publication beyond struct tags
func (v *Validator) ValidateSlotCreate(req *SlotCreateRequest) ValidationErrors {
	errors := v.Validate(req)

	if !req.EndTime.After(req.StartTime) {
		errors = append(errors, ValidationError{
			Field:   "end_time",
			Message: "must be after start_time",
			Value:   req.EndTime,
			Rule:    "business_logic",
		})
	} else {
		duration := req.EndTime.Sub(req.StartTime)
		if duration < 30*time.Minute || duration > 4*time.Hour {
			errors = append(errors, ValidationError{
				Field:   "end_time",
				Message: "slot duration must be between 30 minutes and 4 hours",
				Value:   duration.String(),
				Rule:    "business_logic",
			})
		}
	}

	return errors
}

// ValidateCoursePurchase validates course creation from a payment
func (v *Validator) ValidateCoursePurchase(req *CoursePurchaseRequest) ValidationErrors {
	return v.Validate(req)
}

func (v *Validator) registerBusinessRules() {
	// Licence categories offered by partner schools
	v.validate.RegisterValidation("course_category", func(fl validator.FieldLevel) bool {
		category := fl.Field().String()
		switch models.CourseCategory(category) {
		case models.CategoryA, models.CategoryA1, models.CategoryB, models.CategoryBE, models.CategoryC:
			return true
		}
		return false
	})

	// Criterion grades accept only the two terminal results
	v.validate.RegisterValidation("criterion_result", func(fl validator.FieldLevel) bool {
		result := fl.Field().String()
		return models.CriterionResult(result) == models.CriterionPassed ||
			models.CriterionResult(result) == models.CriterionFailed
	})

	v.validate.RegisterValidation("future_date", func(fl validator.FieldLevel) bool {
		field := fl.Field()

		if field.Kind() == reflect.Ptr && field.IsNil() {
			return true
		}

		var t time.Time
		if field.Kind() == reflect.Ptr {
			t = field.Elem().Interface().(time.Time)
		} else {
			t = field.Interface().(time.Time)
		}

		return t.After(time.Now())
	})

	// Hour packages come in half-hour increments
	v.validate.RegisterValidation("hour_amount", func(fl validator.FieldLevel) bool {
		hours := fl.Field().Float()
		return hours > 0 && hours <= 100 && hours == float64(int(hours*2))/2
	})
}

func (v *Validator) getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "course_category":
		return "must be one of A, A1, B, BE, C"
	case "criterion_result":
		return "must be passed or failed"
	case "future_date":
		return "must be in the future"
	case "hour_amount":
		return "must be a positive half-hour increment up to 100"
	case "min":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", err.Param())
	default:
		return fmt.Sprintf("failed %s validation", err.Tag())
	}
}

// FormatFieldName converts a Go field name to its JSON form for error output
func FormatFieldName(field string) string {
	var out strings.Builder
	runes := []rune(field)
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			// Start of a new word, but keep acronym runs like "ID" together.
			if i > 0 && (runes[i-1] < 'A' || runes[i-1] > 'Z') {
				out.WriteByte('_')
			}
			out.WriteRune(r + ('a' - 'A'))
		} else {
			out.WriteRune(r)
		}
	}
	return out.String()
}
