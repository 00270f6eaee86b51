package invoice

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

type itemInput struct {
	Name      string  `validate:"required"`
	Quantity  float64 `validate:"gt=0"`
	UnitPrice float64 `validate:"gt=0"`
}

// FieldError describes one rejected form field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError is returned when line item input is rejected. No item is created.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "invalid item: " + strings.Join(msgs, "; ")
}

// NewLineItem validates the input and builds an item with a fresh id and its total.
// Names matching the catalog are normalized to the catalog spelling.
func NewLineItem(name string, quantity, unitPrice float64) (LineItem, error) {
	in := itemInput{
		Name:      NormalizeName(name),
		Quantity:  quantity,
		UnitPrice: unitPrice,
	}
	if err := validateItem(in); err != nil {
		return LineItem{}, err
	}
	return LineItem{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Quantity:  in.Quantity,
		UnitPrice: in.UnitPrice,
		Total:     LineTotal(in.Quantity, in.UnitPrice),
	}, nil
}

func validateItem(in itemInput) error {
	verr := &ValidationError{}
	if err := validate.Struct(in); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		for _, fe := range errs {
			verr.Fields = append(verr.Fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe.Field())})
		}
	}
	// gt=0 lets +Inf through
	if math.IsInf(in.Quantity, 0) {
		verr.Fields = append(verr.Fields, FieldError{Field: "Quantity", Message: fieldMessage("Quantity")})
	}
	if math.IsInf(in.UnitPrice, 0) {
		verr.Fields = append(verr.Fields, FieldError{Field: "UnitPrice", Message: fieldMessage("UnitPrice")})
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	// finite inputs can still overflow float64 once multiplied
	if total := LineTotal(in.Quantity, in.UnitPrice); math.IsInf(total, 0) || math.IsNaN(total) {
		return TooLarge("line total")
	}
	return nil
}

// TooLarge reports an amount that cannot be represented, attributed to both numeric fields.
func TooLarge(what string) *ValidationError {
	msg := what + " is too large"
	return &ValidationError{Fields: []FieldError{
		{Field: "Quantity", Message: msg},
		{Field: "UnitPrice", Message: msg},
	}}
}

func fieldMessage(field string) string {
	switch field {
	case "Name":
		return "name is required"
	case "Quantity":
		return "quantity must be a positive number of kilograms"
	case "UnitPrice":
		return "unit price must be a positive amount per kilogram"
	}
	return fmt.Sprintf("%s is invalid", strings.ToLower(field))
}
