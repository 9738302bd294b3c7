package validate

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// PlaygroundV10 Validator implementation using go-playground
type PlaygroundV10 struct {
	core  *validator.Validate
	trans ut.Translator
}

var _ Validator = &PlaygroundV10{}

// NewValidator create a new Validator, messages are translated with locale,
// unknown locales fall back to en
func NewValidator(locale ...string) *PlaygroundV10 {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, zh.New())

	validate := validator.New()
	trans, _ := uni.GetTranslator("en")
	if len(locale) > 0 && locale[0] == "zh" {
		trans, _ = uni.GetTranslator("zh")
		zh_translations.RegisterDefaultTranslations(validate, trans)
	} else {
		en_translations.RegisterDefaultTranslations(validate, trans)
	}
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "-" || name == "" {
			name = fld.Tag.Get("mapstructure")
			if name == "-" || name == "" {
				return ""
			}
		}
		return strings.SplitN(name, ",", 2)[0]
	})
	return &PlaygroundV10{
		core:  validate,
		trans: trans,
	}
}

// Struct validate struct, each error is keyed by the field path without the top level struct name
func (v PlaygroundV10) Struct(s interface{}) []*FieldError {
	err := v.core.Struct(s)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []*FieldError{NewFieldError("", err.Error())}
	}

	result := make([]*FieldError, 0, len(errs))
	for _, item := range errs {
		namespace := item.Namespace()
		domain := namespace[strings.IndexByte(namespace, '.')+1:] // trim top level namespace
		result = append(result, NewFieldError(domain, item.Translate(v.trans)))
	}
	return result
}

// Var validate single variable against tag
func (v PlaygroundV10) Var(name string, s interface{}, tag string) *FieldError {
	err := v.core.Var(s, tag)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return NewFieldError(name, err.Error())
	}
	// variables have no field name, the translation starts with a blank placeholder
	return NewFieldError(name, name+" "+strings.TrimSpace(errs[0].Translate(v.trans)))
}
