package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"pesantren/internal/core"
)

const notBlankTag = "notblank"

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New()

	english := en.New()
	translator, _ = ut.New(english, english).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report JSON names, not Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && strings.TrimSpace(s) != ""
	})
	_ = validate.RegisterTranslation(notBlankTag, translator,
		func(ut.Translator) error { return nil },
		func(_ ut.Translator, fe validator.FieldError) string { return "is required" })
}

// validateStruct runs the struct tags of v and converts failures to
// core.ValidationErrors keyed by JSON field name.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	var out core.ValidationErrors
	for _, fe := range fieldErrs {
		msg := fe.Translate(translator)
		// The translation repeats the field name first.
		msg = strings.TrimSpace(strings.TrimPrefix(msg, fe.Field()))
		out.Add(fe.Field(), msg)
	}
	return out.Err()
}

// decodeValid decodes the body into dst and validates it.
func decodeValid(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(w, r, dst); err != nil {
		return err
	}
	return validateStruct(dst)
}

// Amount is a Rupiah amount in a request body. It accepts a JSON integer or
// a string in grouped display form such as "1.500.000".
type Amount int64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := parseAmountText(s)
		if err != nil {
			return err
		}
		*a = Amount(n)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	i, err := n.Int64()
	if err != nil {
		return core.ErrInvalidAmount
	}
	*a = Amount(i)
	return nil
}

func (a Amount) Int64() int64 { return int64(a) }

// parseAmountText accepts plain digits or a canonically grouped number.
// Anything else, such as "1,500" or "12abc", is rejected rather than read
// up to the first stray character.
func parseAmountText(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.IndexByte(s, core.GroupSeparator) >= 0 {
		if s != core.FormatThousands(s) {
			return 0, fmt.Errorf("%w: %q is not a grouped number", core.ErrInvalidAmount, s)
		}
	} else if strings.Trim(s, "0123456789") != "" {
		return 0, fmt.Errorf("%w: %q is not a number", core.ErrInvalidAmount, s)
	}

	n := core.ParseThousands(s)
	if n == 0 && strings.Trim(s, "0") != "" {
		return 0, fmt.Errorf("%w: %q is too large", core.ErrInvalidAmount, s)
	}
	return n, nil
}
