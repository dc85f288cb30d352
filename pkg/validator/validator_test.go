package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type digitPayload struct {
	Digit string `json:"digit" validate:"required,len=1,digits"`
}

type codePayload struct {
	Code string `json:"code" validate:"max=32"`
}

func TestValidateStructSuccess(t *testing.T) {
	if err := ValidateStruct(digitPayload{Digit: "0"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := ValidateStruct(codePayload{Code: ""}); err != nil {
		t.Fatalf("expected empty code to pass, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	cases := map[string]digitPayload{
		"empty":     {Digit: ""},
		"two chars": {Digit: "12"},
		"sign":      {Digit: "-"},
		"letter":    {Digit: "a"},
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidateStruct(payload)
			if err == nil {
				t.Fatal("expected validation error")
			}

			vErrs, ok := err.(ValidationErrors)
			if !ok {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}
			if len(vErrs) == 0 || vErrs[0].Field != "digit" {
				t.Fatalf("expected digit field failure, got %v", vErrs)
			}
		})
	}
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("kiosk", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "kiosk"
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	type custom struct {
		Value string `validate:"kiosk"`
	}

	if err := ValidateStruct(custom{Value: "kiosk"}); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
	if err := ValidateStruct(custom{Value: "other"}); err == nil {
		t.Fatal("expected validation to fail for non-matching value")
	}
}

func TestDigitsRuleRegistered(t *testing.T) {
	type zipPayload struct {
		Zip string `validate:"digits"`
	}

	if err := ValidateStruct(zipPayload{Zip: "00501"}); err != nil {
		t.Fatalf("expected digits to pass, got %v", err)
	}
	if err := ValidateStruct(zipPayload{Zip: "0050a"}); err == nil {
		t.Fatal("expected digits rule to reject letters")
	}
}
