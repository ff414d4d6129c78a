package orders

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-eshop-orders/internal/apperr"
)

var emailPattern = regexp.MustCompile(`^.+@.+\..+$`)

var (
	ErrMissingBody     = apperr.InvalidInput("Missing JSON body.")
	ErrInvalidBody     = apperr.InvalidInput("Invalid JSON body.")
	ErrMissingEmail    = apperr.InvalidInput("Missing required field - email")
	ErrEmailNotString  = apperr.InvalidInput("email must be a string")
	ErrWrongEmail      = apperr.InvalidInput("Wrong email format.")
	ErrMissingProducts = apperr.InvalidInput("Missing required field - products")
	ErrProductsNotList = apperr.InvalidInput("products must be an array")
	ErrNoProducts      = apperr.InvalidInput("products array can not be empty")
	ErrItemShape       = apperr.InvalidInput("Each product must be an object with 'id' and 'quantity'")
	ErrItemID          = apperr.InvalidInput("product's id must be a valid UUID")
	ErrItemQuantity    = apperr.InvalidInput("product's quantity must be positive number")
)

type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

type CreateOrderInput struct {
	Email string
	Items []ItemInput
}

func (in CreateOrderInput) Validate() error {
	if !emailPattern.MatchString(in.Email) {
		return ErrWrongEmail
	}
	if len(in.Items) == 0 {
		return ErrNoProducts
	}
	for _, it := range in.Items {
		if it.Quantity < 1 {
			return ErrItemQuantity
		}
	}
	return nil
}

var jsonNull = []byte("null")

// ParseCreateOrderRequest decodes and validates a POST /orders body, stopping at the first problem.
// Shapes of all items are checked before the email format.
func ParseCreateOrderRequest(body []byte) (CreateOrderInput, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return CreateOrderInput{}, ErrMissingBody
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return CreateOrderInput{}, ErrInvalidBody
	}
	if len(fields) == 0 {
		return CreateOrderInput{}, ErrMissingBody
	}

	rawEmail, ok := fields["email"]
	if !ok {
		return CreateOrderInput{}, ErrMissingEmail
	}
	var in CreateOrderInput
	if bytes.Equal(rawEmail, jsonNull) || json.Unmarshal(rawEmail, &in.Email) != nil {
		return CreateOrderInput{}, ErrEmailNotString
	}

	rawProducts, ok := fields["products"]
	if !ok {
		return CreateOrderInput{}, ErrMissingProducts
	}
	var rawItems []json.RawMessage
	if bytes.Equal(rawProducts, jsonNull) || json.Unmarshal(rawProducts, &rawItems) != nil {
		return CreateOrderInput{}, ErrProductsNotList
	}
	if len(rawItems) == 0 {
		return CreateOrderInput{}, ErrNoProducts
	}

	in.Items = make([]ItemInput, 0, len(rawItems))
	for _, raw := range rawItems {
		it, err := parseItem(raw)
		if err != nil {
			return CreateOrderInput{}, err
		}
		in.Items = append(in.Items, it)
	}

	if err := in.Validate(); err != nil {
		return CreateOrderInput{}, err
	}
	return in, nil
}

func parseItem(raw json.RawMessage) (ItemInput, error) {
	var obj map[string]json.RawMessage
	if bytes.Equal(raw, jsonNull) || json.Unmarshal(raw, &obj) != nil {
		return ItemInput{}, ErrItemShape
	}
	rawID, hasID := obj["id"]
	rawQty, hasQty := obj["quantity"]
	if !hasID || !hasQty {
		return ItemInput{}, ErrItemShape
	}

	var idStr string
	if err := json.Unmarshal(rawID, &idStr); err != nil {
		return ItemInput{}, ErrItemID
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return ItemInput{}, ErrItemID
	}

	// only a plain JSON integer literal is a quantity; 1.0, "1" and true are rejected
	qty, err := strconv.Atoi(string(bytes.TrimSpace(rawQty)))
	if err != nil || qty < 1 {
		return ItemInput{}, ErrItemQuantity
	}

	return ItemInput{ProductID: id, Quantity: qty}, nil
}
