package orders

import (
	"fmt"
	"strings"

	"github.com/ariefcatur/go-eshop-orders/internal/apperr"
)

type Status string

const (
	StatusUnpaid    Status = "unpaid"
	StatusCancelled Status = "cancelled"
)

var ErrUnknownStatusFilter = apperr.InvalidInput("unknown filter for status")

var validNext = map[Status]map[Status]bool{
	StatusUnpaid:    {StatusCancelled: true},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// ParseStatus converts a stored value into a Status. Unknown values are an internal error.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := validNext[st]; !ok {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

// ParseStatusFilter parses the filter_status query value; blank means no filter.
func ParseStatusFilter(s string) (Status, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	st, err := ParseStatus(s)
	if err != nil {
		return "", ErrUnknownStatusFilter
	}
	return st, nil
}

// cancelError explains why an order in the given status can not be cancelled.
func cancelError(from Status) error {
	if from == StatusCancelled {
		return ErrAlreadyCancelled
	}
	return ErrCannotCancel
}
