package query

import (
	"strings"

	"github.com/goliatone/go-content/pkg/interfaces"
)

type sorter struct {
	keys   []SortKey
	fields []Field
}

func newSorter(keys []SortKey) sorter {
	fields := make([]Field, len(keys))
	for i, key := range keys {
		fields[i] = ParseField(key.Field)
	}
	return sorter{keys: keys, fields: fields}
}

// compare orders by the declared keys, placing missing values last in
// either direction, and breaks ties by `_id`.
func (s sorter) compare(a, b interfaces.Document) int {
	for i, field := range s.fields {
		av, aok := field.lookup(a)
		bv, bok := field.lookup(b)
		switch {
		case !aok && !bok:
			continue
		case !aok:
			return 1
		case !bok:
			return -1
		}
		c := sortCompare(av, bv)
		if c == 0 {
			continue
		}
		if s.keys[i].Desc {
			return -c
		}
		return c
	}
	return strings.Compare(a.ID(), b.ID())
}
