// Package table holds the client-side sort and pagination applied to row
// lists before they are rendered.
package table

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type Row = map[string]any

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortState is the active sort. A zero value means rows keep their order.
type SortState struct {
	Key       string
	Direction Direction
}

// Toggle returns the next sort for a click on key: the same key flips
// asc to desc, anything else starts at asc.
func Toggle(current SortState, key string) SortState {
	if current.Key == key && current.Direction == Asc {
		return SortState{Key: key, Direction: Desc}
	}
	return SortState{Key: key, Direction: Asc}
}

// Sort returns a stably sorted copy of rows. Missing values go last in
// both directions. Two numbers compare numerically, everything else by its
// printed form under a numeric-aware collation, so "item2" precedes
// "item10".
func Sort(rows []Row, state SortState) []Row {
	sorted := slices.Clone(rows)
	if state.Key == "" {
		return sorted
	}

	// Collators keep scratch buffers and are not safe for concurrent use.
	col := collate.New(language.Und, collate.Numeric)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i][state.Key], sorted[j][state.Key]
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		c := compareValues(col, a, b)
		if state.Direction == Desc {
			return c > 0
		}
		return c < 0
	})
	return sorted
}

func compareValues(col *collate.Collator, a, b any) int {
	if af, ok := number(a); ok {
		if bf, ok := number(b); ok {
			return cmp.Compare(af, bf)
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	if c := col.CompareString(as, bs); c != 0 {
		return c
	}
	return cmp.Compare(as, bs)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

type Page struct {
	Rows       []Row
	Number     int
	TotalPages int
	Size       int
	TotalRows  int
}

// Paginate slices out one 1-based page. A size below 1 disables paging and
// returns every row as the only page. There is always at least one page and
// page is clamped into [1, TotalPages].
func Paginate(rows []Row, page, size int) Page {
	if size < 1 {
		return Page{Rows: rows, Number: 1, TotalPages: 1, TotalRows: len(rows)}
	}
	total := max(1, int(math.Ceil(float64(len(rows))/float64(size))))
	page = max(1, min(page, total))

	start := min((page-1)*size, len(rows))
	end := min(page*size, len(rows))

	return Page{
		Rows:       rows[start:end],
		Number:     page,
		TotalPages: total,
		Size:       size,
		TotalRows:  len(rows),
	}
}

// Columns lists every key used by rows. "id" leads when present, the rest
// follow alphabetically.
func Columns(rows []Row) []string {
	seen := map[string]struct{}{}
	for _, row := range rows {
		for key := range row {
			seen[key] = struct{}{}
		}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == "id":
			return -1
		case b == "id":
			return 1
		}
		return cmp.Compare(a, b)
	})
	return keys
}

// Rows keeps the JSON objects of a decoded array. It reports false when
// value is not an array.
func Rows(value any) ([]Row, bool) {
	items, ok := value.([]any)
	if !ok {
		return nil, false
	}
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		if row, ok := item.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows, true
}
