package model

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidTicket 工单字段校验失败.
	ErrInvalidTicket = errors.New("invalid ticket")
	// ErrInvalidIdentifier identifier 不符合 PREFIX-NUMBER 格式.
	ErrInvalidIdentifier = errors.New("invalid ticket identifier")
)

// IdentifierPattern 工单短标识格式, 例如 ABC-123.
var IdentifierPattern = regexp.MustCompile(`^[A-Za-z]+-\d{1,5}$`)

// IsIdentifier reports whether s is a well-formed short identifier.
func IsIdentifier(s string) bool {
	return IdentifierPattern.MatchString(s)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
			return IsIdentifier(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// Validate checks the full ticket state. Errors wrap ErrInvalidIdentifier
// or ErrInvalidTicket.
func (t *Ticket) Validate() error {
	if err := getValidator().Struct(t); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidTicket, err)
		}
		for _, fe := range verrs {
			if fe.Tag() == "identifier" {
				return fmt.Errorf("%w: %q must match %s", ErrInvalidIdentifier, t.IdentifierValue(), IdentifierPattern.String())
			}
		}
		return fmt.Errorf("%w: %s", ErrInvalidTicket, describe(verrs))
	}
	return t.Extensions.Validate()
}

func describe(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "notblank":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
