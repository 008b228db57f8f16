package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// TagModelID accepts catalog identifiers of the form "<provider>/<model>".
const TagModelID = "model_id"

// bodyField keys errors that are not tied to a single JSON field.
const bodyField = "body"

var (
	trans ut.Translator
	once  sync.Once
)

// InitValidator configures gin's engine: JSON field names, English messages
// and the model_id tag. Safe to call more than once.
func InitValidator() {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(jsonName)
		_ = v.RegisterValidation(TagModelID, func(fl validator.FieldLevel) bool {
			return IsModelID(fl.Field().String())
		})

		locale := en.New()
		trans, _ = ut.New(locale, locale).GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, trans)
		_ = v.RegisterTranslation(TagModelID, trans,
			func(t ut.Translator) error {
				return t.Add(TagModelID, "{0} must look like provider/model", true)
			},
			func(t ut.Translator, fe validator.FieldError) string {
				msg, _ := t.T(TagModelID, fe.Field())
				return msg
			},
		)
	})
}

func jsonName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// IsModelID reports whether id has a non-empty provider and model separated
// by the first slash and contains no whitespace.
func IsModelID(id string) bool {
	provider, name, found := strings.Cut(id, "/")
	if !found || provider == "" || name == "" {
		return false
	}
	return strings.IndexFunc(id, unicode.IsSpace) == -1
}

// Struct validates v against its `binding` tags outside of request binding.
func Struct(v any) error {
	InitValidator()
	return binding.Validator.ValidateStruct(v)
}

// ParseValidationError flattens err into field -> message. Field paths drop
// the root struct name, e.g. messages[0].role. Anything that is not a
// validation failure is reported under "body".
func ParseValidationError(err error) map[string]string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return map[string]string{bodyField: "Invalid request body format. Please fix your payload."}
	}

	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		path := fe.Namespace()
		if _, rest, ok := strings.Cut(path, "."); ok {
			path = rest
		}
		fields[path] = message(fe)
	}
	return fields
}

func message(fe validator.FieldError) string {
	if fe.Tag() == "oneof" {
		return fmt.Sprintf("must be one of [%s]", strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	if trans == nil {
		return fe.Error()
	}
	return fe.Translate(trans)
}
