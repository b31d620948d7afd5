package model

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/HarshGadhecha/SpendWise/internal/common"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Compare decimals numerically so gt/gte/lte tags work on money fields.
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return decimalValue(d)
			}
			return nil
		}, decimal.Decimal{})

		// Report JSON field names so errors match the document shape.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		validate = v
	})
	return validate
}

// decimalValue converts d for tag comparisons. Amounts too small for a
// float64 keep their sign so gt=0 and gte=0 still hold for them.
func decimalValue(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	switch {
	case f == 0 && d.IsPositive():
		return math.SmallestNonzeroFloat64
	case f == 0 && d.IsNegative():
		return -math.SmallestNonzeroFloat64
	}
	return f
}

// Validate checks a record against its struct tags. Failures wrap
// common.ErrValidation; amount failures wrap common.ErrInvalidAmount and
// missing fields wrap common.ErrMissingField.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	first := verrs[0]
	switch first.Tag() {
	case "required":
		return fmt.Errorf("%w: %s", common.ErrMissingField, first.Namespace())
	case "gt", "gte":
		if isAmountField(first.Field()) {
			return fmt.Errorf("%w: %s", common.ErrInvalidAmount, first.Namespace())
		}
	}
	return fmt.Errorf("%w: %s failed %q (value %v)", common.ErrValidation, first.Namespace(), first.Tag(), first.Value())
}

func isAmountField(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "amount") || strings.Contains(lower, "value") || lower == "spent"
}

// ValidateTransaction applies the record tags plus the category partition:
// income transactions need an income category and vice versa.
func ValidateTransaction(t Transaction) error {
	if err := Validate(t); err != nil {
		return err
	}
	if !t.Category.IsValid() {
		return fmt.Errorf("%w: unknown category %q", common.ErrValidation, t.Category)
	}
	if (t.Type == TransactionIncome) != t.Category.IsIncome() {
		return fmt.Errorf("%w: category %q does not match %s", common.ErrValidation, t.Category, t.Type)
	}
	return nil
}

// ValidateInsurance applies the record tags and requires beneficiary shares,
// when any are listed, to add up to exactly 100 percent.
func ValidateInsurance(p LifeInsurance) error {
	if err := Validate(p); err != nil {
		return err
	}
	if len(p.Beneficiaries) > 0 && !p.BeneficiaryShare().Equal(hundred) {
		return fmt.Errorf("%w: beneficiary percentages sum to %s, want 100", common.ErrValidation, p.BeneficiaryShare())
	}
	if p.EndDate.Before(p.StartDate) {
		return fmt.Errorf("%w: policy ends before it starts", common.ErrValidation)
	}
	return nil
}
