package i18n

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/he"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	appErrors "github.com/noah-isme/lesson-calendar-api/pkg/errors"
)

const (
	LangEnglish = "en"
	LangHebrew  = "he"
)

// Translator renders error codes as user-facing messages in the caller's language.
type Translator struct {
	uni *ut.UniversalTranslator
}

// New builds a translator loaded with the English and Hebrew catalogs. English is the fallback.
func New() (*Translator, error) {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, he.New())

	for lang, messages := range catalog {
		trans, found := uni.GetTranslator(lang)
		if !found {
			return nil, fmt.Errorf("translator for %q not registered", lang)
		}
		for key, text := range messages {
			if err := trans.Add(key, text, true); err != nil {
				return nil, fmt.Errorf("add %s/%s: %w", lang, key, err)
			}
		}
	}

	return &Translator{uni: uni}, nil
}

// RegisterValidator names fields by their json tag and installs English field messages on v.
func (t *Translator) RegisterValidator(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return en_translations.RegisterDefaultTranslations(v, t.uni.GetFallback())
}

// For picks the best supported translator for an Accept-Language header value.
func (t *Translator) For(acceptLanguage string) ut.Translator {
	if trans, found := t.uni.FindTranslator(parseAcceptLanguage(acceptLanguage)...); found {
		return trans
	}
	return t.uni.GetFallback()
}

// Localize returns a copy of err whose message is rendered in trans. Validation failures gain
// per-field messages as details.
func (t *Translator) Localize(trans ut.Translator, err *appErrors.Error) *appErrors.Error {
	if err == nil {
		return nil
	}
	if trans == nil {
		trans = t.uni.GetFallback()
	}

	out := *err
	if msg, ok := t.message(trans, err); ok {
		out.Message = msg
	}

	var ve validator.ValidationErrors
	if err.Code == appErrors.ErrValidation.Code && errors.As(err.Err, &ve) {
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(t.uni.GetFallback())
		}
		out.Details = fields
	}

	return &out
}

// DayName returns the localized weekday name, Sunday being 0.
func (t *Translator) DayName(trans ut.Translator, day int) string {
	name, err := trans.T("day." + strconv.Itoa(day))
	if err != nil {
		return strconv.Itoa(day)
	}
	return name
}

// PeriodLabel returns the localized label of a period number.
func (t *Translator) PeriodLabel(trans ut.Translator, period int) string {
	label, err := trans.T("period", strconv.Itoa(period))
	if err != nil {
		return strconv.Itoa(period)
	}
	return label
}

func (t *Translator) message(trans ut.Translator, err *appErrors.Error) (string, bool) {
	var params []string
	switch d := err.Details.(type) {
	case appErrors.GradeDetails:
		params = []string{strconv.Itoa(d.Grade)}
	case appErrors.SlotDetails:
		params = []string{t.PeriodLabel(trans, d.PeriodNumber), t.DayName(trans, d.DayOfWeek)}
	}

	template, ok := catalog[trans.Locale()][err.Code]
	if !ok || placeholders(template) > len(params) {
		return "", false
	}
	msg, tErr := trans.T(err.Code, params...)
	if tErr != nil {
		return "", false
	}
	return msg, true
}

func placeholders(template string) int {
	n := 0
	for strings.Contains(template, "{"+strconv.Itoa(n)+"}") {
		n++
	}
	return n
}

func parseAcceptLanguage(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	langs := make([]string, 0, len(parts))
	for _, part := range parts {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag == "" || tag == "*" {
			continue
		}
		primary := strings.ToLower(strings.SplitN(tag, "-", 2)[0])
		if primary == "iw" {
			primary = LangHebrew
		}
		langs = append(langs, primary)
	}
	return langs
}

const contextKey = "i18n.localizer"

type localizer struct {
	translator *Translator
	trans      ut.Translator
}

// Middleware resolves the request language once and stores it on the gin context.
func Middleware(t *Translator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextKey, &localizer{translator: t, trans: t.For(c.GetHeader("Accept-Language"))})
		c.Next()
	}
}

// LocalizeContext renders err in the language chosen by Middleware. Without it the error is returned unchanged.
func LocalizeContext(c *gin.Context, err *appErrors.Error) *appErrors.Error {
	value, exists := c.Get(contextKey)
	if !exists {
		return err
	}
	l, ok := value.(*localizer)
	if !ok {
		return err
	}
	return l.translator.Localize(l.trans, err)
}
