package args

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

var validate = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	return v
})

func jsonName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

// Decode copies raw request arguments into out (a pointer to a struct) and
// validates the result.
func Decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to configure argument decoder: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if err := dec.Decode(raw); err != nil {
		return decodeError(err)
	}
	return Validate(out)
}

// Validate checks the validate tags of a decoded struct.
func Validate(v any) error {
	err := validate().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	aggr := &AggregateError{}
	for _, fe := range fieldErrs {
		aggr.Errors = append(aggr.Errors, &ValidationError{
			Key:    fe.Field(),
			Reason: reason(fe),
			Value:  shown(fe.Value()),
		})
	}
	return aggr
}

func decodeError(err error) error {
	var mErr *mapstructure.Error
	if !errors.As(err, &mErr) {
		return err
	}
	aggr := &AggregateError{}
	for _, msg := range mErr.Errors {
		aggr.Errors = append(aggr.Errors, errors.New(msg))
	}
	return aggr
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url", "http_url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gtfield":
		return fmt.Sprintf("must be after %s", fe.Param())
	case "email":
		return "must be a valid email address"
	}
	return fmt.Sprintf("failed the %q check", fe.Tag())
}

// shown hides zero values so "is required" does not print an empty string.
func shown(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.IsZero() {
		return nil
	}
	return v
}
