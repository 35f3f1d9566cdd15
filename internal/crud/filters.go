package crud

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/doonfrs/trinacrud/internal/authz"
)

// applyFilters attaches caller-supplied filters to the plan. Filters are
// loosely-typed client input, so the policy is fail-open on anything
// unrecognized (unknown key, unknown relation, malformed operator value:
// the entry is dropped) and fail-closed on anything unauthorized (the key
// is dropped the same way, so schema shape is not leaked through errors).
//
// allowed is the model's full action-authorized attribute set.
func (b *Builder) applyFilters(ctx context.Context, plan *gorm.DB, actor authz.Actor, d *Descriptor, filters map[string]interface{}, action Action, allowed map[string]struct{}) *gorm.DB {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := filters[key]
		if strings.Contains(key, ".") {
			plan = b.applyRelationFilter(ctx, plan, actor, d, key, value, action)
			continue
		}
		if _, ok := allowed[key]; !ok {
			continue
		}
		plan = applyFilterValue(plan, d.Table+"."+key, value)
	}
	return plan
}

// applyFilterValue dispatches on the shape of one filter value: a scalar is
// an equality match, a plain array is membership, and an object with an
// "operator" key goes through operator dispatch.
func applyFilterValue(plan *gorm.DB, column string, value interface{}) *gorm.DB {
	switch v := value.(type) {
	case map[string]interface{}:
		op, ok := v["operator"].(string)
		if !ok {
			return plan
		}
		return applyOperator(plan, column, op, v["value"])
	case []interface{}:
		return plan.Where(column+" IN ?", v)
	default:
		return plan.Where(column+" = ?", value)
	}
}

// applyOperator emits the constraint for one {operator, value} descriptor.
// Malformed values (a between without exactly two bounds, a not_in without
// a sequence) emit no constraint at all. The operator string itself is
// never interpolated into SQL; anything outside the fixed vocabulary falls
// back to equality.
func applyOperator(plan *gorm.DB, column, operator string, value interface{}) *gorm.DB {
	switch operator {
	case "between":
		bounds, ok := value.([]interface{})
		if !ok || len(bounds) != 2 {
			return plan
		}
		return plan.Where(column+" BETWEEN ? AND ?", bounds[0], bounds[1])
	case "not_in":
		values, ok := value.([]interface{})
		if !ok {
			return plan
		}
		return plan.Where(column+" NOT IN ?", values)
	case "like":
		return plan.Where(column+" LIKE ?", "%"+fmt.Sprint(value)+"%")
	case "not", "!=":
		return plan.Where(column+" <> ?", value)
	case ">", "<", ">=", "<=":
		return plan.Where(column+" "+operator+" ?", value)
	default:
		return plan.Where(column+" = ?", value)
	}
}

// applyRelationFilter handles a dotted "relation.attribute" key by adding
// an existence-constrained subquery against the related table. The
// relation must exist structurally on the model, its target must be a
// resolvable CRUD model, and the actor must hold both the action on the
// target and the named attribute; otherwise the entry is dropped silently.
func (b *Builder) applyRelationFilter(ctx context.Context, plan *gorm.DB, actor authz.Actor, d *Descriptor, key string, value interface{}, action Action) *gorm.DB {
	parts := strings.SplitN(key, ".", 2)
	rel, ok := d.Relations[parts[0]]
	if !ok || rel.TargetName == "" || strings.Contains(parts[1], ".") {
		return plan
	}
	target, err := b.registry.Resolve(rel.TargetName)
	if err != nil {
		return plan
	}

	permitted, err := b.gate.HasModelPermission(ctx, actor, target.Name, action.String())
	if err != nil || !permitted {
		return plan
	}
	attrs, err := authorizedAttributes(ctx, b.gate, actor, target, action, nil)
	if err != nil || !contains(attrs, parts[1]) {
		return plan
	}

	sub := b.relationExists(rel, target)
	if sub == nil {
		return plan
	}
	sub = applyFilterValue(sub, target.Table+"."+parts[1], value)
	return plan.Where("EXISTS (?)", sub)
}

// relationExists builds the correlated subquery skeleton for one relation,
// derived from the relation's foreign key references. Many-to-many goes
// through the join table.
func (b *Builder) relationExists(rel Relation, target *Descriptor) *gorm.DB {
	sub := b.db.Session(&gorm.Session{NewDB: true})

	if rel.ref.Type == schema.Many2Many {
		if rel.ref.JoinTable == nil {
			return nil
		}
		sub = sub.Table(rel.ref.JoinTable.Table).Select("1")
		for _, ref := range rel.ref.References {
			cond := fmt.Sprintf("%s.%s = %s.%s",
				ref.ForeignKey.Schema.Table, ref.ForeignKey.DBName,
				ref.PrimaryKey.Schema.Table, ref.PrimaryKey.DBName)
			if ref.PrimaryKey.Schema.Table == target.Table {
				sub = sub.Joins("JOIN " + target.Table + " ON " + cond)
			} else {
				sub = sub.Where(cond)
			}
		}
		return sub
	}

	sub = sub.Table(target.Table).Select("1")
	for _, ref := range rel.ref.References {
		sub = sub.Where(fmt.Sprintf("%s.%s = %s.%s",
			ref.ForeignKey.Schema.Table, ref.ForeignKey.DBName,
			ref.PrimaryKey.Schema.Table, ref.PrimaryKey.DBName))
	}
	return sub
}
