// Package validate provides struct validation with Spanish operator messages
package validate

import (
	"reflect"
	"strings"
	"sync"

	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/logger"

	"github.com/go-playground/locales/es"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	es_translations "github.com/go-playground/validator/v10/translations/es"
)

// FieldLevel aliases validator.FieldLevel
type FieldLevel = validator.FieldLevel

// FieldError aliases validator.FieldError
type FieldError = validator.FieldError

// Svc holds a singleton validator and its Spanish translator
type Svc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *Svc
)

// Init initializes the singleton validator with Spanish translations and json tag names
func Init() *Svc {
	vOnce.Do(func() {
		esLoc := es.New()
		uni := ut.New(esLoc, esLoc)
		trans, _ := uni.GetTranslator("es")

		v := validator.New(validator.WithRequiredStructEnabled())

		// prefer json tag names in messages
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})

		_ = es_translations.RegisterDefaultTranslations(v, trans)

		// short messages for min and max
		registerShortMin(v, trans)
		registerShortMax(v, trans)

		// date tag for YYYY-MM-DD strings
		registerDateYMD(v, trans)

		vSvc = &Svc{Validator: v, Translator: trans}
	})
	return vSvc
}

// Get returns the validator singleton, initializing on first use
func Get() *Svc {
	if vSvc == nil {
		return Init()
	}
	return vSvc
}

// RegisterValidation registers a custom tag
func RegisterValidation(tag string, fn validator.Func) error {
	return Get().Validator.RegisterValidation(tag, fn)
}

// Struct validates v and maps failures to project validation errors
// All field messages are joined so the operator sees every problem at once
func Struct(v any) error {
	err := Get().Validator.Struct(v)
	if err == nil {
		return nil
	}
	if inv, ok := err.(*validator.InvalidValidationError); ok {
		logger.Get().Error().Err(inv).Msg("validator internal error")
		return perr.InvalidInputf("error de validación")
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return perr.InvalidInputf("%s", err.Error())
	}

	trans := Get().Translator
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(trans))
	}
	e := perr.Newf(codeFor(verrs[0].Tag()), "%s", strings.Join(msgs, "; "))
	return perr.WithField(e, verrs[0].Field())
}

// codeFor maps a validator tag to the project taxonomy
func codeFor(tag string) perr.ErrorCode {
	switch tag {
	case "required":
		return perr.ErrorCodeMissingField
	case "min", "max", "gt", "gte", "lt", "lte":
		return perr.ErrorCodeOutOfRange
	default:
		return perr.ErrorCodeInvalidInput
	}
}

// FieldAndMessage returns the first field and translated message
func FieldAndMessage(err error) (field, message string) {
	if err == nil {
		return "", ""
	}
	if inv, ok := err.(*validator.InvalidValidationError); ok {
		return "", inv.Error()
	}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			return fe.Field(), fe.Translate(Get().Translator)
		}
	}
	return "", err.Error()
}

// custom translations with short messages

func registerShortMin(v *validator.Validate, trans ut.Translator) {
	_ = v.RegisterTranslation("min", trans,
		func(ut ut.Translator) error {
			return ut.Add("min", "{0} debe ser como mínimo {1}", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T("min", fe.Field(), fe.Param())
			return msg
		},
	)
}

func registerShortMax(v *validator.Validate, trans ut.Translator) {
	_ = v.RegisterTranslation("max", trans,
		func(ut ut.Translator) error {
			return ut.Add("max", "{0} debe ser como máximo {1}", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T("max", fe.Field(), fe.Param())
			return msg
		},
	)
}

func registerDateYMD(v *validator.Validate, trans ut.Translator) {
	_ = v.RegisterValidation("date_ymd", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len(s) != 10 {
			return false
		}
		for i, ch := range s {
			if i == 4 || i == 7 {
				if ch != '-' {
					return false
				}
				continue
			}
			if ch < '0' || ch > '9' {
				return false
			}
		}
		return true
	})
	_ = v.RegisterTranslation("date_ymd", trans,
		func(ut ut.Translator) error {
			return ut.Add("date_ymd", "{0} debe tener formato YYYY-MM-DD", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T("date_ymd", fe.Field())
			return msg
		},
	)
}
