package crud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/doonfrs/trinacrud/internal/authz"
	"github.com/doonfrs/trinacrud/internal/models"
	"github.com/doonfrs/trinacrud/internal/validation"
)

const allowedNS = "github.com/doonfrs/trinacrud/internal/models"

var alice = authz.Actor{UserID: 1, OrgID: 1, Email: "alice@example.com"}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.Role{},
		&models.UserRole{},
		&models.ModelGrant{},
		&models.AuditLog{},
		&models.Post{},
		&models.Comment{},
	))
	return gdb
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(Config{AllowedNamespaces: []string{allowedNS}})
	require.NoError(t, r.Register(models.User{}))
	require.NoError(t, r.Register(models.Post{}, WithRules(ActionCreate, map[string]interface{}{
		"title": "required,max=255",
	})))
	require.NoError(t, r.Register(models.Comment{}))
	return r
}

func newTestOwnership() *authz.ColumnOwnership {
	o := authz.NewColumnOwnership()
	o.SetPolicy("models.User", authz.OwnershipPolicy{OrgColumn: "org_id"})
	o.SetPolicy("models.Post", authz.OwnershipPolicy{OrgColumn: "org_id", OwnerColumn: "user_id"})
	o.SetPolicy("models.Comment", authz.OwnershipPolicy{OrgColumn: "org_id"})
	return o
}

func newTestService(t *testing.T, gdb *gorm.DB) *Service {
	t.Helper()
	return NewService(gdb, newTestRegistry(t), authz.DBGate{DB: gdb}, newTestOwnership(), validation.New())
}

// grant inserts one permission rule held directly by alice.
func grant(t *testing.T, gdb *gorm.DB, model, attribute, action string) {
	t.Helper()
	require.NoError(t, gdb.Create(&models.ModelGrant{
		OrgID:         alice.OrgID,
		ModelName:     model,
		Attribute:     attribute,
		Action:        action,
		PrincipalType: models.PrincipalUser,
		PrincipalID:   alice.UserID,
	}).Error)
}

// grantAll gives alice every action with unrestricted columns on a model.
func grantAll(t *testing.T, gdb *gorm.DB, model string) {
	t.Helper()
	for _, action := range Actions {
		grant(t, gdb, model, "", action.String())
		grant(t, gdb, model, "*", action.String())
	}
}

func seedPosts(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	posts := []models.Post{
		{ID: 1, OrgID: 1, UserID: 1, Title: "first", Body: "alpha", Published: true},
		{ID: 2, OrgID: 1, UserID: 1, Title: "second", Body: "beta", Published: false},
		{ID: 3, OrgID: 1, UserID: 1, Title: "third", Body: "gamma", Published: true},
		{ID: 4, OrgID: 1, UserID: 2, Title: "not mine", Body: "delta", Published: true},
		{ID: 5, OrgID: 2, UserID: 1, Title: "other org", Body: "epsilon", Published: true},
	}
	require.NoError(t, gdb.Create(&posts).Error)

	comments := []models.Comment{
		{ID: 1, OrgID: 1, PostID: 1, UserID: 2, AuthorName: "bob", Body: "nice"},
		{ID: 2, OrgID: 1, PostID: 2, UserID: 2, AuthorName: "carol", Body: "hmm"},
	}
	require.NoError(t, gdb.Create(&comments).Error)
}

func titles(result *PagedResult) []string {
	out := make([]string, 0, len(result.Data))
	for _, rec := range result.Data {
		if v, ok := rec["title"].(string); ok {
			out = append(out, v)
		}
	}
	return out
}

// fakeGate is a canned Gate for unit tests that must not touch storage.
type fakeGate struct {
	perms map[string]bool
	attrs map[string][]string
}

func (f fakeGate) HasModelPermission(_ context.Context, _ authz.Actor, model, action string) (bool, error) {
	return f.perms[model+":"+action], nil
}

func (f fakeGate) AuthorizedAttributes(_ context.Context, _ authz.Actor, model, action string, columns []string) ([]string, error) {
	granted := f.attrs[model+":"+action]
	for _, g := range granted {
		if g == "*" {
			return append([]string(nil), columns...), nil
		}
	}
	return intersect(columns, granted), nil
}
