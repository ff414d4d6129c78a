package paging

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-eshop-orders/internal/apperr"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 50

	// MaxPage keeps (page-1)*limit inside int for every allowed limit.
	MaxPage = math.MaxInt / MaxLimit
)

var (
	ErrPageNotPositive  = apperr.InvalidInput("page number can not be negative")
	ErrLimitNotPositive = apperr.InvalidInput("limit can not be negative")
	ErrLimitTooLarge    = apperr.InvalidInput("limit can not be greater than 50")
	ErrPageNotInteger   = apperr.InvalidInput("page must be an integer")
	ErrLimitNotInteger  = apperr.InvalidInput("limit must be an integer")
	ErrPageTooLarge     = apperr.InvalidInput("page number is too large")
)

type Params struct {
	Page  int
	Limit int
}

func New(page, limit int) (Params, error) {
	p := Params{Page: page, Limit: limit}
	return p, p.Validate()
}

func (p Params) Validate() error {
	if p.Page <= 0 {
		return ErrPageNotPositive
	}
	if p.Page > MaxPage {
		return ErrPageTooLarge
	}
	if p.Limit <= 0 {
		return ErrLimitNotPositive
	}
	if p.Limit > MaxLimit {
		return ErrLimitTooLarge
	}
	return nil
}

// Parse reads page and limit from query values, applying defaults for absent or blank values.
func Parse(q url.Values) (Params, error) {
	page, err := intParam(q, "page", DefaultPage)
	if err != nil {
		return Params{}, ErrPageNotInteger
	}
	limit, err := intParam(q, "limit", DefaultLimit)
	if err != nil {
		return Params{}, ErrLimitNotInteger
	}
	return New(page, limit)
}

func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages is ceil(total / limit).
func (p Params) TotalPages(total int) int {
	if p.Limit <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

func intParam(q url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
