package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyNames(p *SortPlan) []string {
	out := make([]string, len(p.Keys))
	for i, k := range p.Keys {
		out[i] = k.Column.Name + ":" + string(k.Direction)
	}
	return out
}

func TestBuildSortPlan(t *testing.T) {
	tests := []struct {
		name   string
		entity EntityType
		specs  []SortSpec
		want   []string
	}{
		{"posts default", EntityPosts, nil, []string{"createdAt:desc", "id:desc"}},
		{"taxonomies default", EntityTaxonomies, nil, []string{"name:asc", "id:asc"}},
		{"explicit asc", EntityMedia, []SortSpec{{Property: "size", Direction: Asc}}, []string{"size:asc", "id:asc"}},
		{"tiebreaker follows last key", EntityPosts, []SortSpec{{Property: "title", Direction: Asc}, {Property: "publishedAt", Direction: Desc}}, []string{"title:asc", "publishedAt:desc", "id:desc"}},
		{"explicit id not duplicated", EntityUsers, []SortSpec{{Property: "name", Direction: Asc}, {Property: "id", Direction: Desc}}, []string{"name:asc", "id:desc"}},
		{"keys after id dropped", EntityUsers, []SortSpec{{Property: "id", Direction: Asc}, {Property: "name", Direction: Asc}}, []string{"id:asc"}},
		{"duplicates collapse", EntityUsers, []SortSpec{{Property: "name", Direction: Asc}, {Property: "name", Direction: Desc}}, []string{"name:asc", "id:asc"}},
		{"all common sort", EntityAll, []SortSpec{{Property: "updatedAt", Direction: Asc}}, []string{"updatedAt:asc", "id:asc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, details := BuildSortPlan(NewResolver(tt.entity, nil), tt.specs)
			require.Empty(t, details)
			assert.Equal(t, tt.entity, plan.Entity)
			assert.Equal(t, tt.want, keyNames(plan))
		})
	}
}

func TestBuildSortPlan_Invalid(t *testing.T) {
	_, details := BuildSortPlan(NewResolver(EntityAll, nil), []SortSpec{
		{Property: "title", Direction: Asc, Field: "sorts[0]"},
		{Property: "createdAt", Direction: Asc, Field: "sorts[1]"},
		{Property: "customFields.x", Direction: Asc, Field: "sorts[2]"},
	})
	require.Len(t, details, 2)
	assert.Equal(t, "sorts[0].property", details[0].Field)
	assert.Equal(t, "sorts[2].property", details[1].Field)
}

func TestBuildSortPlan_InvalidAfterID(t *testing.T) {
	_, details := BuildSortPlan(NewResolver(EntityPosts, nil), []SortSpec{
		{Property: "id", Direction: Asc, Field: "sorts[0]"},
		{Property: "title", Direction: Asc, Field: "sorts[1]"},
		{Property: "nope", Direction: Asc, Field: "sorts[2]"},
	})
	require.Len(t, details, 1)
	assert.Equal(t, "sorts[2].property", details[0].Field)
	assert.Equal(t, CodeInvalidProperty, details[0].Code)
}

func TestSortPlan_Fingerprint(t *testing.T) {
	a, _ := BuildSortPlan(NewResolver(EntityPosts, nil), nil)
	b, _ := BuildSortPlan(NewResolver(EntityPosts, nil), []SortSpec{{Property: "createdAt", Direction: Desc}})
	c, _ := BuildSortPlan(NewResolver(EntityPosts, nil), []SortSpec{{Property: "createdAt", Direction: Asc}})
	d, _ := BuildSortPlan(NewResolver(EntityMedia, nil), nil)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint())
	assert.Len(t, a.Fingerprint(), 16)
}

func TestSortPlan_Less(t *testing.T) {
	plan, _ := BuildSortPlan(NewResolver(EntityPosts, nil), []SortSpec{{Property: "publishedAt", Direction: Desc}})
	t1 := Time(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	t2 := Time(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	assert.True(t, plan.Less([]Value{t2, String("a")}, []Value{t1, String("b")}))
	assert.True(t, plan.Less([]Value{t1, String("a")}, []Value{Null(), String("a")}), "nulls last descending")
	assert.True(t, plan.Less([]Value{t1, String("b")}, []Value{t1, String("a")}), "tiebreaker descending")
	assert.False(t, plan.Less([]Value{t1, String("a")}, []Value{t1, String("a")}))

	asc, _ := BuildSortPlan(NewResolver(EntityPosts, nil), []SortSpec{{Property: "publishedAt", Direction: Asc}})
	assert.True(t, asc.Less([]Value{Null(), String("z")}, []Value{t1, String("a")}), "nulls first ascending")
}
