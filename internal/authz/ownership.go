package authz

import "gorm.io/gorm"

// OwnershipService narrows a query plan to the rows an actor owns or is
// granted. The predicate it attaches is opaque to callers; the query
// pipeline only threads the plan through.
type OwnershipService interface {
	Scope(plan *gorm.DB, model, table, action string, actor Actor) *gorm.DB
}

// Stamper is an optional extension of OwnershipService: it returns the
// column values that tie a newly created record to the actor, so a caller
// cannot create rows outside their own scope.
type Stamper interface {
	Stamp(model string, actor Actor) map[string]interface{}
}

// OwnershipPolicy describes how rows of one model are tied to an actor.
// Either column may be empty; an empty policy leaves the model unscoped.
type OwnershipPolicy struct {
	OwnerColumn string // column holding the owning user id
	OrgColumn   string // column holding the organization id
}

// ColumnOwnership scopes rows by comparing configured columns against the
// actor's identity. Policies are registered at startup and read-only after.
type ColumnOwnership struct {
	policies map[string]OwnershipPolicy
}

func NewColumnOwnership() *ColumnOwnership {
	return &ColumnOwnership{policies: map[string]OwnershipPolicy{}}
}

func (o *ColumnOwnership) SetPolicy(model string, p OwnershipPolicy) {
	o.policies[model] = p
}

func (o *ColumnOwnership) Stamp(model string, actor Actor) map[string]interface{} {
	p, ok := o.policies[model]
	if !ok {
		return nil
	}
	out := map[string]interface{}{}
	if p.OrgColumn != "" {
		out[p.OrgColumn] = actor.OrgID
	}
	if p.OwnerColumn != "" {
		out[p.OwnerColumn] = actor.UserID
	}
	return out
}

func (o *ColumnOwnership) Scope(plan *gorm.DB, model, table, action string, actor Actor) *gorm.DB {
	p, ok := o.policies[model]
	if !ok {
		return plan
	}
	if p.OrgColumn != "" {
		plan = plan.Where(table+"."+p.OrgColumn+" = ?", actor.OrgID)
	}
	if p.OwnerColumn != "" {
		plan = plan.Where(table+"."+p.OwnerColumn+" = ?", actor.UserID)
	}
	return plan
}
