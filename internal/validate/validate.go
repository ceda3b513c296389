// Package validate checks request inputs against their struct-tag rules and
// reports every failed field with a client-facing message.
package validate

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/hijo-electricity/hijo/internal/model"
)

// Errors lists every field that failed validation.
type Errors struct {
	Fields []model.FieldError
}

func (e *Errors) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Messager is implemented by inputs that supply their own messages, keyed by
// "<field>.<rule>".
type Messager interface {
	Messages() map[string]string
}

// phonePattern accepts international and local numbers with the usual
// separators.
var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-().]{5,18}[0-9]$`)

// Validator wraps a configured validator.Validate. It is safe for concurrent
// use.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator that names fields after their json or form tag and
// understands the "phone" rule.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)
	v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// Struct validates s and returns *Errors listing each failed field, or nil.
func (v *Validator) Struct(s interface{}) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	var messages map[string]string
	if m, ok := s.(Messager); ok {
		messages = m.Messages()
	}
	out := &Errors{Fields: make([]model.FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, model.FieldError{
			Field:   fe.Field(),
			Message: message(messages, fe),
		})
	}
	return out
}

func message(messages map[string]string, fe validator.FieldError) string {
	if msg, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	default:
		return "Invalid value for " + fe.Field()
	}
}

// DecodeForm copies the first value of each form key into the fields of dst
// tagged with a matching `form` name. Keys absent from values leave their
// fields untouched, so pointer fields stay nil.
func DecodeForm(values url.Values, dst interface{}) error {
	input := make(map[string]interface{}, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			input[k] = vs[0]
		}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "form",
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		return fmt.Errorf("form decoder: %w", err)
	}
	return dec.Decode(input)
}

// ErrInvalidID is returned by ParseID for anything but a positive integer.
var ErrInvalidID = &Errors{Fields: []model.FieldError{{Field: "id", Message: "Invalid ID format"}}}

// ParseID parses a positive integer path parameter.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 1 {
		return 0, ErrInvalidID
	}
	return id, nil
}
