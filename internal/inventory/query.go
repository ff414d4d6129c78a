package inventory

import (
	"strings"

	"github.com/ariefcatur/go-eshop-orders/internal/apperr"
	"github.com/ariefcatur/go-eshop-orders/internal/paging"
	"github.com/ariefcatur/go-eshop-orders/internal/postgres"
)

type SortField string

const (
	SortByName      SortField = "name"
	SortByID        SortField = "id"
	SortByStock     SortField = "stock"
	SortByPrice     SortField = "price"
	SortByUnitsSold SortField = "units_sold"
)

type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

var (
	ErrUnknownOrderBy = apperr.InvalidInput("unknown order_by")
	ErrUnknownOrder   = apperr.InvalidInput("unknown order")
)

// sortColumns is the whitelist of ORDER BY expressions; user input never reaches SQL directly.
var sortColumns = map[SortField]string{
	SortByName:      "name COLLATE " + postgres.SortCollation,
	SortByID:        "id",
	SortByStock:     "stock",
	SortByPrice:     "price",
	SortByUnitsSold: "units_sold",
}

// ParseSortField accepts the public field names. Blank means name; "_id" is an alias of id.
func ParseSortField(s string) (SortField, error) {
	switch s = strings.TrimSpace(s); s {
	case "":
		return SortByName, nil
	case "_id":
		return SortByID, nil
	}
	f := SortField(s)
	if _, ok := sortColumns[f]; !ok {
		return "", ErrUnknownOrderBy
	}
	return f, nil
}

func ParseSortDirection(s string) (SortDirection, error) {
	switch SortDirection(strings.TrimSpace(s)) {
	case "", Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	}
	return "", ErrUnknownOrder
}

type ListQuery struct {
	Paging    paging.Params
	NameQuery string
	OrderBy   SortField
	Order     SortDirection
}

type Page struct {
	Paging   paging.Params
	Total    int
	Products []Product
}

func (p Page) TotalPages() int { return p.Paging.TotalPages(p.Total) }

func (q ListQuery) orderClause() string {
	field := q.OrderBy
	if field == "" {
		field = SortByName
	}
	dir := "ASC"
	if q.Order == Desc {
		dir = "DESC"
	}
	clause := sortColumns[field] + " " + dir
	if field != SortByID {
		clause += ", id " + dir
	}
	return clause
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
