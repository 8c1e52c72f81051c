// Package validate checks request structs with go-playground/validator and
// reports failures as VALIDATION_ERROR app errors with readable messages.
package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/windfall/poplingo_service/internal/errors"
	"github.com/windfall/poplingo_service/internal/service"
)

// Validator validates request structs.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// New builds a Validator with the custom "language" and "voice" tags.
func New() (*Validator, error) {
	validate := validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, fmt.Errorf("failed to register default translations: %w", err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	custom := []struct {
		tag     string
		fn      validator.Func
		message string
	}{
		{tag: "language", fn: isLanguage, message: "{0} must be a supported language"},
		{tag: "voice", fn: isVoice, message: "{0} must be one of Puck, Charon, Kore, Fenrir, Zephyr"},
	}
	for _, c := range custom {
		if err := validate.RegisterValidation(c.tag, c.fn); err != nil {
			return nil, fmt.Errorf("failed to register %s validation: %w", c.tag, err)
		}
		tag, message := c.tag, c.message
		if err := validate.RegisterTranslation(tag, trans, func(ut ut.Translator) error {
			return ut.Add(tag, message, true)
		}, func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		}); err != nil {
			return nil, fmt.Errorf("failed to register %s translation: %w", tag, err)
		}
	}

	return &Validator{validate: validate, trans: trans}, nil
}

// Struct validates v. Field failures are joined into one validation error
// whose details map each field to its message.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Validation(err.Error())
	}

	messages := make([]string, 0, len(fieldErrs))
	details := make(map[string]interface{}, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg := fe.Translate(v.trans)
		messages = append(messages, msg)
		details[fe.Field()] = msg
	}
	return errors.Validation(strings.Join(messages, "; ")).WithDetails(details)
}

func isLanguage(fl validator.FieldLevel) bool {
	_, err := service.ParseLanguage(fl.Field().String())
	return err == nil
}

func isVoice(fl validator.FieldLevel) bool {
	_, err := service.ParseVoice(fl.Field().String())
	return err == nil
}
