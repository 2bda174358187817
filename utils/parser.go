package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/vitwit/x402core/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report JSON (or TOML) member names so errors match what the user
	// wrote.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, key := range []string{"json", "toml"} {
			name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})

	// x402network: a name accepted by types.ParseNetwork.
	// x402amount: a non-negative integer that fits in 256 bits.
	mustRegister("x402network", validateNetworkTag)
	mustRegister("x402amount", validateAmountTag)
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

// ValidateStruct runs struct-tag validation and flattens the result into a
// single error message. It returns the offending field errors so callers
// can map them to their own error kinds.
func ValidateStruct(s interface{}) (validator.ValidationErrors, error) {
	err := validate.Struct(s)
	if err == nil {
		return nil, nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil, err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fieldErrs, errors.New(strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("missing field `%s`", fe.Field())
	case "eth_addr":
		return fmt.Sprintf("%s must be a 0x-prefixed 20-byte hex address", fe.Field())
	case "x402network":
		return fmt.Sprintf("%s: unknown network %v", fe.Field(), fe.Value())
	case "x402amount":
		return fmt.Sprintf("%s: %v is not an unsigned 256-bit integer", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func validateNetworkTag(fl validator.FieldLevel) bool {
	_, err := types.ParseNetwork(fl.Field().String())
	return err == nil
}

func validateAmountTag(fl validator.FieldLevel) bool {
	_, err := types.ParseAmount(fl.Field().String())
	return err == nil
}
