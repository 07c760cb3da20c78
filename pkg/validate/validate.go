package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/perarneng/gmail2s3/pkg/apperrors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names ("verify_ssl") instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Struct validates s and returns a *apperrors.ValidationError listing every
// failed field, or nil.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &apperrors.ValidationError{Message: err.Error()}
	}

	var msgs []string
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i != -1 {
			field = field[i+1:]
		}
		fields = append(fields, field)
		param := fe.Param()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "url":
			msgs = append(msgs, field+" must be a valid URL")
		case "oneof":
			msgs = append(msgs, field+" must be one of ["+param+"]")
		case "min":
			msgs = append(msgs, field+" must be at least "+param)
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return &apperrors.ValidationError{Field: strings.Join(fields, ","), Message: strings.Join(msgs, ", ")}
}
