package search

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// SortKey is one resolved key of a sort plan
type SortKey struct {
	Column    Column
	Direction SortDirection
}

// SortPlan is the complete ordering of a query. The last key is always the
// id tiebreaker, so every row has a unique position.
type SortPlan struct {
	Entity EntityType
	Keys   []SortKey
}

// BuildSortPlan resolves explicit sorts, falling back to the entity default,
// and appends the id tiebreaker in the direction of the last key.
// Keys following an explicit id sort can never break a tie and are dropped,
// though they are still resolved and reported when invalid.
func BuildSortPlan(resolver *Resolver, specs []SortSpec) (*SortPlan, []Detail) {
	catalog := resolver.catalog
	if catalog == nil {
		return nil, []Detail{{Field: "entityType", Code: CodeInvalidProperty, Message: "unknown entity type"}}
	}
	if len(specs) == 0 {
		specs = catalog.DefaultSort
	}

	plan := &SortPlan{Entity: catalog.Entity}
	var details []Detail
	seen := map[string]bool{}
	closed := false
	for i, spec := range specs {
		col, err := resolver.ResolveSort(spec.Property)
		if err != nil {
			field := spec.Field
			if field == "" {
				field = "sorts[" + strconv.Itoa(i) + "]"
			}
			details = append(details, toDetail(field+".property", err))
			continue
		}
		if closed || seen[col.Name] {
			continue
		}
		seen[col.Name] = true
		plan.Keys = append(plan.Keys, SortKey{Column: col, Direction: spec.Direction})
		closed = col.Name == IDProperty
	}
	if len(details) > 0 {
		return nil, details
	}

	if !seen[IDProperty] {
		dir := Asc
		if n := len(plan.Keys); n > 0 {
			dir = plan.Keys[n-1].Direction
		}
		id, _ := catalog.Column(IDProperty)
		plan.Keys = append(plan.Keys, SortKey{Column: id, Direction: dir})
	}
	return plan, nil
}

// Fingerprint identifies the entity type and ordering a cursor was issued for
func (p *SortPlan) Fingerprint() string {
	var b strings.Builder
	b.WriteString(string(p.Entity))
	for _, k := range p.Keys {
		b.WriteByte('|')
		b.WriteString(k.Column.Name)
		b.WriteByte(':')
		b.WriteString(string(k.Direction))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

// Less orders two records by the plan. NULLs sort first ascending and last
// descending, matching the store ordering.
func (p *SortPlan) Less(a, b []Value) bool {
	for i, k := range p.Keys {
		if i >= len(a) || i >= len(b) {
			break
		}
		c := Compare(a[i], b[i])
		if c == 0 {
			continue
		}
		if k.Direction == Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}
