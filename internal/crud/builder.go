package crud

import (
	"context"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/doonfrs/trinacrud/internal/authz"
)

// Builder composes registry lookups, attribute authorization, ownership
// scoping, caller filters and relation loads into a single gorm query plan.
// The plan is threaded through each stage as a value and returned; nothing
// reaches the storage engine without passing the ownership stage.
type Builder struct {
	db        *gorm.DB
	registry  *Registry
	gate      authz.Gate
	ownership authz.OwnershipService
}

func NewBuilder(db *gorm.DB, registry *Registry, gate authz.Gate, ownership authz.OwnershipService) *Builder {
	return &Builder{db: db, registry: registry, gate: gate, ownership: ownership}
}

type buildOptions struct {
	attributes     []string
	with           []string
	withAttributes map[string][]string
	filters        map[string]interface{}
}

// loadedRelation records one relation that survived authorization, with
// the attribute set its rows will be projected down to.
type loadedRelation struct {
	rel    Relation
	target *Descriptor
	attrs  []string
}

// queryShape is what the facade needs to project raw records back into
// authorized payloads: the selected root attributes and the loaded
// relations. empty marks a fail-closed plan that matches no rows.
type queryShape struct {
	attrs     []string
	relations []loadedRelation
	empty     bool
}

type preloadSpec struct {
	field string
	scope func(tx *gorm.DB) *gorm.DB
}

// Build assembles an authorized query plan in the fixed pipeline order:
// select, ownership scope, caller filters, relation loads.
func (b *Builder) Build(ctx context.Context, actor authz.Actor, d *Descriptor, action Action, opts buildOptions) (*gorm.DB, *queryShape, error) {
	allowed, err := authorizedAttributes(ctx, b.gate, actor, d, action, nil)
	if err != nil {
		return nil, nil, err
	}
	attrs := allowed
	if len(opts.attributes) > 0 {
		attrs = intersect(allowed, opts.attributes)
	}

	plan := b.db.WithContext(ctx).Model(d.New())

	// A column-restricted query whose authorized set is empty must return
	// zero rows rather than fall back to unrestricted columns.
	if len(attrs) == 0 {
		plan = plan.Where("1 = 0")
		return plan, &queryShape{empty: true}, nil
	}

	preloads, rootExtra, loaded, err := b.relationPreloads(ctx, actor, d, opts.with, opts.withAttributes, action)
	if err != nil {
		return nil, nil, err
	}

	selectCols := uniqueCols(attrs, append([]string{d.PrimaryKey}, rootExtra...)...)
	plan = plan.Select(qualifyColumns(d.Table, selectCols))
	plan = b.ownership.Scope(plan, d.Name, d.Table, action.String(), actor)
	plan = b.applyFilters(ctx, plan, actor, d, opts.filters, action, toSet(allowed))
	for _, p := range preloads {
		plan = plan.Preload(p.field, p.scope)
	}

	return plan, &queryShape{attrs: attrs, relations: loaded}, nil
}

// relationPreloads prepares one eager-load directive per authorized
// relation request. A relation the actor may not act on is skipped
// silently; the request as a whole still succeeds. Each surviving relation
// gets its own attribute restriction (primary key and linkage columns
// force-included so relational matching keeps working) and its own
// ownership scope inside the preload configurator. Relations of relations
// are not descended into; one level is authorized and loaded per request.
func (b *Builder) relationPreloads(ctx context.Context, actor authz.Actor, d *Descriptor, with []string, withAttributes map[string][]string, action Action) ([]preloadSpec, []string, []loadedRelation, error) {
	var (
		preloads  []preloadSpec
		rootExtra []string
		loaded    []loadedRelation
	)

	for _, name := range with {
		rel, ok := d.Relations[name]
		if !ok || rel.TargetName == "" {
			continue
		}
		target, err := b.registry.Resolve(rel.TargetName)
		if err != nil {
			continue
		}

		permitted, err := b.gate.HasModelPermission(ctx, actor, target.Name, action.String())
		if err != nil {
			return nil, nil, nil, err
		}
		if !permitted {
			continue
		}

		attrs, err := authorizedAttributes(ctx, b.gate, actor, target, action, withAttributes[name])
		if err != nil {
			return nil, nil, nil, err
		}

		extra := []string{target.PrimaryKey}
		if rel.ref.Type != schema.Many2Many {
			for _, ref := range rel.ref.References {
				if ref.ForeignKey.Schema.Table == target.Table {
					extra = append(extra, ref.ForeignKey.DBName)
				}
				if ref.ForeignKey.Schema.Table == d.Table {
					rootExtra = append(rootExtra, ref.ForeignKey.DBName)
				}
				if ref.PrimaryKey.Schema.Table == d.Table {
					rootExtra = append(rootExtra, ref.PrimaryKey.DBName)
				}
			}
		}

		selectCols := uniqueCols(attrs, extra...)
		failClosed := len(attrs) == 0
		scope := func(tx *gorm.DB) *gorm.DB {
			tx = tx.Select(selectCols)
			if failClosed {
				tx = tx.Where("1 = 0")
			}
			return b.ownership.Scope(tx, target.Name, target.Table, action.String(), actor)
		}

		preloads = append(preloads, preloadSpec{field: rel.FieldName, scope: scope})
		loaded = append(loaded, loadedRelation{rel: rel, target: target, attrs: attrs})
	}

	return preloads, rootExtra, loaded, nil
}

// projectValue turns one fetched record into a payload containing only the
// authorized, selected attributes plus the primary key, with loaded
// relations projected the same way. A column outside the shape never
// appears in the output, not even zero-valued.
func (b *Builder) projectValue(ctx context.Context, d *Descriptor, rv reflect.Value, shape *queryShape) map[string]interface{} {
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}

	rec := make(map[string]interface{}, len(shape.attrs)+len(shape.relations)+1)
	pk, _ := d.sch.PrioritizedPrimaryField.ValueOf(ctx, rv)
	rec[d.PrimaryKey] = pk
	for _, col := range shape.attrs {
		field, ok := d.sch.FieldsByDBName[col]
		if !ok {
			continue
		}
		value, _ := field.ValueOf(ctx, rv)
		rec[col] = value
	}

	for _, lr := range shape.relations {
		fv := lr.rel.ref.Field.ReflectValueOf(ctx, rv)
		relShape := &queryShape{attrs: lr.attrs}
		switch fv.Kind() {
		case reflect.Slice:
			items := make([]map[string]interface{}, 0, fv.Len())
			for i := 0; i < fv.Len(); i++ {
				items = append(items, b.projectValue(ctx, lr.target, fv.Index(i), relShape))
			}
			rec[lr.rel.Name] = items
		case reflect.Ptr:
			if fv.IsNil() {
				rec[lr.rel.Name] = nil
			} else {
				rec[lr.rel.Name] = b.projectValue(ctx, lr.target, fv.Elem(), relShape)
			}
		case reflect.Struct:
			rec[lr.rel.Name] = b.projectValue(ctx, lr.target, fv, relShape)
		}
	}

	return rec
}

func uniqueCols(cols []string, forced ...string) []string {
	seen := make(map[string]struct{}, len(cols)+len(forced))
	out := make([]string, 0, len(cols)+len(forced))
	for _, c := range append(append([]string(nil), cols...), forced...) {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func qualifyColumns(table string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = table + "." + c
	}
	return out
}
