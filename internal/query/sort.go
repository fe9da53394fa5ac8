package query

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/Israelam72/mini-seller-console/internal/crm"
)

const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// field extracts one sortable value. Exactly one of num and str is set.
type field[T any] struct {
	num func(T) int
	str func(T) string
}

var leadFields = map[string]field[crm.Lead]{
	"id":      {num: func(l crm.Lead) int { return l.ID }},
	"score":   {num: func(l crm.Lead) int { return l.Score }},
	"name":    {str: func(l crm.Lead) string { return l.Name }},
	"company": {str: func(l crm.Lead) string { return l.Company }},
	"email":   {str: func(l crm.Lead) string { return l.Email }},
	"source":  {str: func(l crm.Lead) string { return l.Source }},
	"status":  {str: func(l crm.Lead) string { return string(l.Status) }},
}

var opportunityFields = map[string]field[crm.Opportunity]{
	"id":           {num: func(o crm.Opportunity) int { return o.ID }},
	"amount":       {num: func(o crm.Opportunity) int { return o.Amount }},
	"name":         {str: func(o crm.Opportunity) string { return o.Name }},
	"stage":        {str: func(o crm.Opportunity) string { return o.Stage }},
	"account_name": {str: func(o crm.Opportunity) string { return o.AccountName }},
}

// sortSpec resolves sortBy/sortOrder against fields, filling the defaults
// for whichever part is missing.
func sortSpec[T any](fields map[string]field[T], sortBy, sortOrder, defaultBy string) (field[T], bool, error) {
	if sortBy == "" {
		sortBy = defaultBy
	}
	if sortOrder == "" {
		sortOrder = OrderDesc
	}

	f, ok := fields[sortBy]
	if !ok {
		return field[T]{}, false, &crm.ValidationError{Fields: map[string]string{
			"sort_by": fmt.Sprintf("cannot sort by %q", sortBy),
		}}
	}
	switch sortOrder {
	case OrderAsc:
		return f, false, nil
	case OrderDesc:
		return f, true, nil
	default:
		return field[T]{}, false, &crm.ValidationError{Fields: map[string]string{
			"sort_order": fmt.Sprintf("sort order must be %q or %q", OrderAsc, OrderDesc),
		}}
	}
}

// sortStable orders items in place. Equal keys keep their relative order in
// both directions.
func sortStable[T any](items []T, f field[T], desc bool, lang language.Tag) {
	var compare func(a, b T) int
	if f.num != nil {
		compare = func(a, b T) int { return cmp.Compare(f.num(a), f.num(b)) }
	} else {
		coll := collate.New(lang)
		compare = func(a, b T) int { return coll.CompareString(f.str(a), f.str(b)) }
	}

	slices.SortStableFunc(items, func(a, b T) int {
		if desc {
			return compare(b, a)
		}
		return compare(a, b)
	})
}

func amountString(o crm.Opportunity) string {
	return strconv.Itoa(o.Amount)
}
