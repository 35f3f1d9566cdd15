package crud

import (
	"context"

	"github.com/doonfrs/trinacrud/internal/authz"
)

// authorizedAttributes returns the attribute set the actor may touch for
// one action on a model. An empty request means the full authorized set;
// otherwise the intersection, in authorized-set order so the result is
// deterministic. An empty return is not an error: the caller must
// fail closed by constraining the query to match nothing.
func authorizedAttributes(ctx context.Context, gate authz.Gate, actor authz.Actor, d *Descriptor, action Action, requested []string) ([]string, error) {
	allowed, err := gate.AuthorizedAttributes(ctx, actor, d.Name, action.String(), d.Columns)
	if err != nil {
		return nil, err
	}
	if len(requested) == 0 {
		return allowed, nil
	}
	return intersect(allowed, requested), nil
}

// intersect keeps the elements of ordered that also occur in others,
// preserving the order of ordered.
func intersect(ordered, others []string) []string {
	set := make(map[string]struct{}, len(others))
	for _, o := range others {
		set[o] = struct{}{}
	}
	out := make([]string, 0, len(ordered))
	for _, a := range ordered {
		if _, ok := set[a]; ok {
			out = append(out, a)
		}
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, i := range items {
		set[i] = struct{}{}
	}
	return set
}

func contains(items []string, needle string) bool {
	for _, i := range items {
		if i == needle {
			return true
		}
	}
	return false
}
