package sqlstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/platinummonkey/folio/pkg/search"
)

// builder accumulates bind arguments in placeholder order
type builder struct {
	d    Dialect
	args []interface{}
}

func newBuilder(d Dialect) *builder {
	return &builder{d: d}
}

// arg binds v and returns its placeholder
func (b *builder) arg(v interface{}) string {
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

// value binds a search value. Serialized custom field values compare as text
// for booleans; timestamps use the dialect representation.
func (b *builder) value(v search.Value, serialized bool) string {
	switch v.Kind() {
	case search.KindNumber:
		return b.d.NumberParam(b.arg(v.Num()))
	case search.KindBool:
		if serialized {
			return b.arg(strconv.FormatBool(v.BoolVal()))
		}
		return b.arg(v.BoolVal())
	case search.KindTime:
		return b.arg(b.d.TimeArg(v.TimeVal()))
	case search.KindNull:
		return b.arg(nil)
	default:
		return b.arg(v.Str())
	}
}

// renderer turns a predicate tree into a WHERE fragment for one table
type renderer struct {
	*builder
	table *table
}

func (r *renderer) predicate(p search.Predicate) (string, error) {
	switch n := p.(type) {
	case search.And:
		return r.join(n, " AND ", "1=1")
	case search.Or:
		return r.join(n, " OR ", "1=0")
	case search.Condition:
		return r.condition(n)
	default:
		return "", fmt.Errorf("unsupported predicate %T", p)
	}
}

func (r *renderer) join(children []search.Predicate, sep, empty string) (string, error) {
	if len(children) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(children))
	for _, c := range children {
		s, err := r.predicate(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (r *renderer) condition(c search.Condition) (string, error) {
	switch p := c.Property.(type) {
	case search.StandardProperty:
		expr, err := r.table.column(p.Column.Name)
		if err != nil {
			return "", err
		}
		return r.column(expr, p.Column, c), nil
	case search.CustomFieldProperty:
		return r.customField(p, c), nil
	case search.TaxonomyProperty:
		return r.taxonomy(p, c), nil
	case search.RelationshipProperty:
		return r.relationship(p, c)
	default:
		return "", fmt.Errorf("unsupported property %T", c.Property)
	}
}

// column renders a condition over a column of the row itself. Negated
// operators also match rows where a nullable column is NULL.
func (r *renderer) column(expr string, col search.Column, c search.Condition) string {
	switch c.Op {
	case search.OpIsNull:
		return expr + " IS NULL"
	case search.OpIsNotNull:
		return expr + " IS NOT NULL"
	}
	if col.Type == search.TypeString && c.Op.Family() != search.FamilyString {
		expr = r.d.Ordered(expr)
	}
	pos := r.compare(expr, c.Op.Positive(), c.Operand, false)
	if !c.Op.Negated() {
		return pos
	}
	if col.Nullable {
		return "(" + expr + " IS NULL OR NOT (" + pos + "))"
	}
	return "NOT (" + pos + ")"
}

// compare renders a positive comparison of expr against the operand
func (r *renderer) compare(expr string, op search.Operator, operand search.Value, serialized bool) string {
	switch op {
	case search.OpEq:
		return expr + " = " + r.value(operand, serialized)
	case search.OpGt:
		return expr + " > " + r.value(operand, serialized)
	case search.OpGte:
		return expr + " >= " + r.value(operand, serialized)
	case search.OpLt:
		return expr + " < " + r.value(operand, serialized)
	case search.OpLte:
		return expr + " <= " + r.value(operand, serialized)
	case search.OpIn:
		items := operand.Items()
		params := make([]string, len(items))
		for i, item := range items {
			params[i] = r.value(item, serialized)
		}
		return expr + " IN (" + strings.Join(params, ", ") + ")"
	case search.OpBetween:
		bounds := operand.Items()
		return expr + " BETWEEN " + r.value(bounds[0], serialized) + " AND " + r.value(bounds[1], serialized)
	case search.OpContains:
		return r.d.Like(expr, r.arg("%"+EscapeLike(strings.ToLower(operand.Str()))+"%"))
	case search.OpStartsWith:
		return r.d.Like(expr, r.arg(EscapeLike(strings.ToLower(operand.Str()))+"%"))
	case search.OpEndsWith:
		return r.d.Like(expr, r.arg("%"+EscapeLike(strings.ToLower(operand.Str()))))
	}
	return "1=0"
}

// customField renders an existence test over the post's stored field value
func (r *renderer) customField(p search.CustomFieldProperty, c search.Condition) string {
	slug := r.arg(p.Slug)
	exists := func(cond string) string {
		q := "EXISTS (SELECT 1 FROM post_field_values fv JOIN custom_fields cf ON cf.id = fv.field_id" +
			" WHERE fv.post_id = " + r.table.alias + ".id AND cf.organization_id = " + r.table.orgColumn +
			" AND cf.slug = " + slug + " AND fv.value IS NOT NULL"
		if cond != "" {
			q += " AND " + cond
		}
		return q + ")"
	}

	switch c.Op {
	case search.OpIsNull:
		return "NOT " + exists("")
	case search.OpIsNotNull:
		return exists("")
	}

	// conversions see only this field's values whatever order the planner
	// evaluates the join conditions in
	value := "(CASE WHEN cf.slug = " + slug + " THEN fv.value END)"

	var cond string
	op := c.Op.Positive()
	switch {
	case p.ValueType() == search.TypeStructured && op == search.OpEq:
		cond = r.structuredEqual(value, p.FieldType, c.Operand)
	case p.FieldType == search.FieldMultiSelect:
		cond = r.d.JSONArrayContains(value, r.arg(c.Operand.Str()))
	case p.ValueType() == search.TypeNumber:
		cond = r.compare(r.d.Number(value), op, c.Operand, true)
	case p.ValueType() == search.TypeTime:
		cond = r.compareTimestamp(value, op, c.Operand)
	default:
		cond = r.compare("fv.value", op, c.Operand, true)
	}
	if c.Op.Negated() {
		return "NOT " + exists(cond)
	}
	return exists(cond)
}

// structuredEqual compares a serialized structured value: multiselect
// selections as option sets, everything else as JSON values
func (r *renderer) structuredEqual(expr string, ft search.FieldType, operand search.Value) string {
	if ft != search.FieldMultiSelect {
		return r.d.JSONEquals(expr, r.arg(operand.Str()))
	}
	options := operand.Items()
	params := make([]string, len(options))
	for i, o := range options {
		params[i] = r.arg(o.Str())
	}
	return r.d.JSONArraySetEquals(expr, params)
}

// compareTimestamp compares a serialized timestamp, converting both sides
func (r *renderer) compareTimestamp(expr string, op search.Operator, operand search.Value) string {
	lhs := r.d.Timestamp(expr)
	bind := func(v search.Value) string { return r.d.Timestamp(r.value(v, true)) }
	switch op {
	case search.OpIn:
		items := operand.Items()
		params := make([]string, len(items))
		for i, item := range items {
			params[i] = bind(item)
		}
		return lhs + " IN (" + strings.Join(params, ", ") + ")"
	case search.OpBetween:
		bounds := operand.Items()
		return lhs + " BETWEEN " + bind(bounds[0]) + " AND " + bind(bounds[1])
	case search.OpGt:
		return lhs + " > " + bind(operand)
	case search.OpGte:
		return lhs + " >= " + bind(operand)
	case search.OpLt:
		return lhs + " < " + bind(operand)
	case search.OpLte:
		return lhs + " <= " + bind(operand)
	default:
		return lhs + " = " + bind(operand)
	}
}

// taxonomy renders an existence test over the terms attached to the post
func (r *renderer) taxonomy(p search.TaxonomyProperty, c search.Condition) string {
	exists := func(cond string) string {
		q := "EXISTS (SELECT 1 FROM post_terms pt JOIN terms tm ON tm.id = pt.term_id" +
			" JOIN taxonomies tx ON tx.id = tm.taxonomy_id" +
			" WHERE pt.post_id = " + r.table.alias + ".id AND tx.organization_id = " + r.table.orgColumn +
			" AND tx.slug = " + r.arg(p.Taxonomy)
		if cond != "" {
			q += " AND " + cond
		}
		return q + ")"
	}

	if p.HasTerm() {
		attached := true
		switch c.Op {
		case search.OpIsNull:
			attached = false
		case search.OpIsNotNull:
		default:
			attached = c.Operand.BoolVal() != c.Op.Negated()
		}
		q := exists("tm.slug = " + r.arg(p.Term))
		if attached {
			return q
		}
		return "NOT " + q
	}

	switch c.Op {
	case search.OpIsNull:
		return "NOT " + exists("")
	case search.OpIsNotNull:
		return exists("")
	}
	q := exists(r.compare("tm.slug", c.Op.Positive(), c.Operand, false))
	if c.Op.Negated() {
		return "NOT " + q
	}
	return q
}

// relationship renders an existence test over the posts linked by the
// named relationship
func (r *renderer) relationship(p search.RelationshipProperty, c search.Condition) (string, error) {
	target, ok := relatedColumns[p.Target.Name]
	if !ok {
		return "", fmt.Errorf("related posts have no column for property %q", p.Target.Name)
	}
	exists := func(cond string) string {
		return "EXISTS (SELECT 1 FROM post_relationships pr JOIN posts rp ON rp.id = pr.target_post_id" +
			" WHERE pr.source_post_id = " + r.table.alias + ".id AND rp.organization_id = " + r.table.orgColumn +
			" AND pr.relationship_type = " + r.arg(p.Relationship) + " AND " + cond + ")"
	}

	switch c.Op {
	case search.OpIsNull:
		return "NOT " + exists(target+" IS NOT NULL"), nil
	case search.OpIsNotNull:
		return exists(target + " IS NOT NULL"), nil
	}
	expr := target
	if p.Target.Type == search.TypeString && c.Op.Family() != search.FamilyString {
		expr = r.d.Ordered(expr)
	}
	q := exists(r.compare(expr, c.Op.Positive(), c.Operand, false))
	if c.Op.Negated() {
		return "NOT " + q, nil
	}
	return q, nil
}

// textSearch renders the free-text match over the table's search columns
func (r *renderer) textSearch(text string) string {
	pattern := "%" + EscapeLike(strings.ToLower(text)) + "%"
	parts := make([]string, len(r.table.searchColumns))
	for i, col := range r.table.searchColumns {
		parts[i] = r.d.Like(col, r.arg(pattern))
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}
