package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxQuotedValue bounds how much of an offending value is echoed back in messages.
const maxQuotedValue = 10

var (
	uuidPattern       = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[1-8][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	patientAgePattern = regexp.MustCompile(`^[0-9]{1,3}$`)
)

// validate is the shared validator instance, configured once in init().
var validate *validator.Validate

// enumTags binds a struct tag to the closed value set it accepts.
var enumTags = map[string][]string{
	"region":           Regions,
	"cavity_class":     CavityClasses,
	"restoration_size": RestorationSizes,
	"substrate":        Substrates,
	"aesthetic_level":  AestheticLevels,
	"longevity":        LongevityExpectations,
	"budget":           Budgets,
}

func init() {
	validate = validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = validate.RegisterValidation("uuid_rfc", func(fl validator.FieldLevel) bool {
		return uuidPattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("tooth", func(fl validator.FieldLevel) bool {
		return IsValidTooth(fl.Field().String())
	})
	_ = validate.RegisterValidation("vita_shade", func(fl validator.FieldLevel) bool {
		return IsValidVitaShade(fl.Field().String())
	})
	_ = validate.RegisterValidation("patient_age", func(fl validator.FieldLevel) bool {
		return patientAgePattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("ceramic_type", func(fl validator.FieldLevel) bool {
		_, ok := NormalizeCeramicType(fl.Field().String())
		return ok
	})
	for tag, values := range enumTags {
		allowed := values
		_ = validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return contains(allowed, fl.Field().String())
		})
	}
}

// decodeAndValidate decodes raw JSON into dst and runs the struct tags over it.
// The returned error message is safe to hand back to API clients.
func decodeAndValidate(raw []byte, dst interface{}) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return errors.New("request body is empty")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return decodeError(err)
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		if isBool(typeErr.Type) {
			return fmt.Errorf("%s must be a boolean", field)
		}
		return fmt.Errorf("%s has an invalid type: expected %s, got %s", field, typeErr.Type, typeErr.Value)
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Errorf("malformed JSON at offset %d", syntaxErr.Offset)
	}
	return fmt.Errorf("invalid request body: %v", err)
}

func isBool(t reflect.Type) bool {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t != nil && t.Kind() == reflect.Bool
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fieldMessage(fe))
	}
	return errors.New(strings.Join(messages, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}
	value := fmt.Sprint(fe.Value())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "uuid_rfc":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "tooth":
		return fmt.Sprintf("%s: invalid tooth %q (expected FDI notation 11-48)", field, truncate(value, maxQuotedValue))
	case "vita_shade":
		return fmt.Sprintf("%s: unknown VITA shade %q", field, truncate(value, maxQuotedValue))
	case "patient_age":
		return fmt.Sprintf("%s must be a numeric string", field)
	case "ceramic_type":
		return fmt.Sprintf("%s: unknown ceramic type %q; expected one of: %s",
			field, truncate(value, maxQuotedValue), strings.Join(CeramicTypes, ", "))
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, joinQuoted(strings.Fields(fe.Param())))
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at most %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at least %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "unique":
		return fmt.Sprintf("%s must not contain duplicates", field)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	}
	if values, ok := enumTags[fe.Tag()]; ok {
		return fmt.Sprintf("%s must be one of: %s", field, joinQuoted(values))
	}
	return fmt.Sprintf("%s is invalid", field)
}
