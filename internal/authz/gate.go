package authz

import (
	"context"

	"gorm.io/gorm"

	"github.com/doonfrs/trinacrud/internal/models"
)

// Gate answers whether an actor may perform an action on a model, and which
// of a model's columns the actor may touch for that action. Implementations
// own the permission store; callers never see how rules are persisted.
type Gate interface {
	HasModelPermission(ctx context.Context, actor Actor, model, action string) (bool, error)
	// AuthorizedAttributes returns, in the order of columns, the subset the
	// actor holds an attribute grant for. A "*" grant covers every column.
	AuthorizedAttributes(ctx context.Context, actor Actor, model, action string, columns []string) ([]string, error)
}

// DBGate resolves permissions from model_grants, honoring grants held
// directly by the user and grants attached to any of the user's roles.
type DBGate struct {
	DB *gorm.DB
}

func (g DBGate) HasModelPermission(ctx context.Context, actor Actor, model, action string) (bool, error) {
	var count int64
	err := g.DB.WithContext(ctx).Model(&models.ModelGrant{}).
		Where("org_id = ? AND model_name = ? AND action = ? AND attribute = ''", actor.OrgID, model, action).
		Where(g.principalClause(actor)).
		Count(&count).Error
	return count > 0, err
}

func (g DBGate) AuthorizedAttributes(ctx context.Context, actor Actor, model, action string, columns []string) ([]string, error) {
	var granted []string
	err := g.DB.WithContext(ctx).Model(&models.ModelGrant{}).
		Where("org_id = ? AND model_name = ? AND action = ? AND attribute <> ''", actor.OrgID, model, action).
		Where(g.principalClause(actor)).
		Distinct().
		Pluck("attribute", &granted).Error
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(granted))
	for _, a := range granted {
		if a == "*" {
			out := make([]string, len(columns))
			copy(out, columns)
			return out, nil
		}
		set[a] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for _, c := range columns {
		if _, ok := set[c]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// principalClause matches grants held by the user directly or through any
// of the user's roles in the same organization.
func (g DBGate) principalClause(actor Actor) *gorm.DB {
	roleIDs := g.DB.Table("user_roles").Select("role_id").
		Where("user_id = ? AND org_id = ?", actor.UserID, actor.OrgID)
	return g.DB.
		Where("principal_type = ? AND principal_id = ?", models.PrincipalUser, actor.UserID).
		Or("principal_type = ? AND principal_id IN (?)", models.PrincipalRole, roleIDs)
}
