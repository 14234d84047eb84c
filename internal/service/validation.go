package service

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/noah-isme/school-events-api/internal/models"
)

var (
	alnumSpaceRegex  = regexp.MustCompile(`^[a-zA-Z0-9\s]+$`)
	descriptionRegex = regexp.MustCompile(`^[a-zA-Z0-9\s.,;:()!?¿¡\-]+$`)
	indexSuffixRegex = regexp.MustCompile(`\[\d+\]`)
)

type customTag struct {
	tag  string
	text string
	fn   validator.Func
}

var customTags = []customTag{
	{"alnumspace", "{0} may only contain letters, numbers and spaces", func(fl validator.FieldLevel) bool {
		return alnumSpaceRegex.MatchString(fl.Field().String())
	}},
	{"description", "{0} may only contain letters, numbers, spaces and . , ; : ( ) ! ? ¿ ¡ -", func(fl validator.FieldLevel) bool {
		return descriptionRegex.MatchString(fl.Field().String())
	}},
	{"event_type", "{0} must be one of Conference, Workshop, Seminar, Contest", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseEventType(fl.Field().String())
		return ok
	}},
	{"audience", "{0} may only contain Students, Teachers or General public", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseAudience(fl.Field().String())
		return ok
	}},
	{"program", "{0} must be one of the offered education programs", func(fl validator.FieldLevel) bool {
		return models.IsEducationProgram(fl.Field().String())
	}},
	{"event_date", "{0} must be a date formatted YYYY-MM-DD or DD/MM/YYYY", func(fl validator.FieldLevel) bool {
		_, err := models.ParseEventDate(fl.Field().String())
		return err == nil
	}},
	{"clock", "{0} must be a time formatted HH:MM or HH:MM:SS", func(fl validator.FieldLevel) bool {
		_, err := models.ParseTimeOfDay(fl.Field().String())
		return err == nil
	}},
}

// Validator wraps validator/v10 with JSON field names, English messages and the event tags.
type Validator struct {
	*validator.Validate
	trans ut.Translator
}

// NewValidator builds a ready to use Validator.
func NewValidator() *Validator {
	validate := validator.New()
	locale := en.New()
	trans, _ := ut.New(locale, locale).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, trans)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	for _, ct := range customTags {
		_ = validate.RegisterValidation(ct.tag, ct.fn)
		registerTranslation(validate, trans, ct.tag, ct.text, false)
	}
	registerTranslation(validate, trans, "required", "{0} is required", true)

	return &Validator{Validate: validate, trans: trans}
}

func registerTranslation(validate *validator.Validate, trans ut.Translator, tag, text string, override bool) {
	_ = validate.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fieldName(fe))
			return msg
		},
	)
}

// Fields turns validation errors into messages keyed by JSON field path. Any other error
// yields nil.
func (v *Validator) Fields(err error) map[string][]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		name := fieldName(fe)
		out[name] = appendUnique(out[name], fe.Translate(v.trans))
	}
	return out
}

// fieldName drops the root struct name and slice indexes from the error namespace.
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return indexSuffixRegex.ReplaceAllString(ns, "")
}

func appendUnique(list []string, msg string) []string {
	for _, existing := range list {
		if existing == msg {
			return list
		}
	}
	return append(list, msg)
}
