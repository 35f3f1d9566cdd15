package crud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listFiltered runs a list over the seeded posts with one filter set and
// returns the matched titles in primary-key order.
func listFiltered(t *testing.T, svc *Service, filters map[string]interface{}) []string {
	t.Helper()
	result, err := svc.List(context.Background(), alice, "models.Post", ListOptions{Filters: filters})
	require.NoError(t, err)
	return titles(result)
}

func newFilterService(t *testing.T) *Service {
	t.Helper()
	gdb := newTestDB(t)
	grantAll(t, gdb, "models.Post")
	seedPosts(t, gdb)
	return newTestService(t, gdb)
}

func TestFilterEquality(t *testing.T) {
	svc := newFilterService(t)
	assert.Equal(t, []string{"first", "third"}, listFiltered(t, svc, map[string]interface{}{
		"published": true,
	}))
}

func TestFilterMembership(t *testing.T) {
	svc := newFilterService(t)
	assert.Equal(t, []string{"first", "third"}, listFiltered(t, svc, map[string]interface{}{
		"id": []interface{}{float64(1), float64(3)},
	}))
}

func TestFilterOperators(t *testing.T) {
	svc := newFilterService(t)

	cases := []struct {
		name   string
		filter map[string]interface{}
		want   []string
	}{
		{"like", map[string]interface{}{
			"title": map[string]interface{}{"operator": "like", "value": "ir"},
		}, []string{"first", "third"}},
		{"between", map[string]interface{}{
			"id": map[string]interface{}{"operator": "between", "value": []interface{}{float64(2), float64(3)}},
		}, []string{"second", "third"}},
		{"not_in", map[string]interface{}{
			"id": map[string]interface{}{"operator": "not_in", "value": []interface{}{float64(1)}},
		}, []string{"second", "third"}},
		{"not", map[string]interface{}{
			"title": map[string]interface{}{"operator": "not", "value": "first"},
		}, []string{"second", "third"}},
		{"gte", map[string]interface{}{
			"id": map[string]interface{}{"operator": ">=", "value": float64(2)},
		}, []string{"second", "third"}},
		{"lt", map[string]interface{}{
			"id": map[string]interface{}{"operator": "<", "value": float64(2)},
		}, []string{"first"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, listFiltered(t, svc, tc.filter))
		})
	}
}

func TestFilterMalformedOperatorValueIgnored(t *testing.T) {
	svc := newFilterService(t)

	// between without exactly two bounds adds no constraint.
	assert.Equal(t, []string{"first", "second", "third"}, listFiltered(t, svc, map[string]interface{}{
		"id": map[string]interface{}{"operator": "between", "value": []interface{}{float64(1), float64(2), float64(3)}},
	}))
	// not_in with a scalar adds no constraint.
	assert.Equal(t, []string{"first", "second", "third"}, listFiltered(t, svc, map[string]interface{}{
		"id": map[string]interface{}{"operator": "not_in", "value": float64(1)},
	}))
	// object without an operator key is dropped entirely.
	assert.Equal(t, []string{"first", "second", "third"}, listFiltered(t, svc, map[string]interface{}{
		"id": map[string]interface{}{"value": float64(1)},
	}))
}

func TestFilterUnknownOperatorFallsBackToEquality(t *testing.T) {
	svc := newFilterService(t)

	// The operator string never reaches SQL; anything unrecognized is an
	// equality match.
	assert.Equal(t, []string{"first"}, listFiltered(t, svc, map[string]interface{}{
		"id": map[string]interface{}{"operator": ") OR 1=1 --", "value": float64(1)},
	}))
}

func TestFilterUnknownKeyDropped(t *testing.T) {
	svc := newFilterService(t)
	assert.Equal(t, []string{"first", "second", "third"}, listFiltered(t, svc, map[string]interface{}{
		"no_such_column": "x",
	}))
}

func TestFilterUnauthorizedKeyDropped(t *testing.T) {
	gdb := newTestDB(t)
	grant(t, gdb, "models.Post", "", "read")
	grant(t, gdb, "models.Post", "id", "read")
	grant(t, gdb, "models.Post", "title", "read")
	seedPosts(t, gdb)
	svc := newTestService(t, gdb)

	// body is a real column but outside the actor's attribute grant: the
	// filter is dropped rather than rejected, so grants do not leak.
	assert.Equal(t, []string{"first", "second", "third"}, listFiltered(t, svc, map[string]interface{}{
		"body": "alpha",
	}))
}

func TestRelationFilter(t *testing.T) {
	gdb := newTestDB(t)
	grantAll(t, gdb, "models.Post")
	grantAll(t, gdb, "models.Comment")
	seedPosts(t, gdb)
	svc := newTestService(t, gdb)

	assert.Equal(t, []string{"first"}, listFiltered(t, svc, map[string]interface{}{
		"comments.author_name": "bob",
	}))
}

func TestRelationFilterUnauthorizedTargetDropped(t *testing.T) {
	svc := newFilterService(t) // no comment grants at all
	assert.Equal(t, []string{"first", "second", "third"}, listFiltered(t, svc, map[string]interface{}{
		"comments.author_name": "bob",
	}))
}

func TestRelationFilterUnauthorizedAttributeDropped(t *testing.T) {
	gdb := newTestDB(t)
	grantAll(t, gdb, "models.Post")
	grant(t, gdb, "models.Comment", "", "read")
	grant(t, gdb, "models.Comment", "body", "read")
	seedPosts(t, gdb)
	svc := newTestService(t, gdb)

	// The target model is readable but author_name is not granted.
	assert.Equal(t, []string{"first", "second", "third"}, listFiltered(t, svc, map[string]interface{}{
		"comments.author_name": "bob",
	}))
	// A granted attribute on the same relation still narrows.
	assert.Equal(t, []string{"second"}, listFiltered(t, svc, map[string]interface{}{
		"comments.body": "hmm",
	}))
}

func TestRelationFilterStructuralMisses(t *testing.T) {
	gdb := newTestDB(t)
	grantAll(t, gdb, "models.Post")
	grantAll(t, gdb, "models.Comment")
	seedPosts(t, gdb)
	svc := newTestService(t, gdb)

	// Unknown relation and nested paths are dropped, never errors.
	assert.Equal(t, []string{"first", "second", "third"}, listFiltered(t, svc, map[string]interface{}{
		"ghost.title": "x",
	}))
	assert.Equal(t, []string{"first", "second", "third"}, listFiltered(t, svc, map[string]interface{}{
		"comments.post.title": "x",
	}))
}
