package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/doonfrs/trinacrud/internal/models"
)

var postColumns = []string{"id", "org_id", "user_id", "title", "body", "published"}

func newGateDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&models.UserRole{}, &models.ModelGrant{}))
	return gdb
}

func addGrant(t *testing.T, gdb *gorm.DB, orgID int64, principalType string, principalID int64, model, attribute, action string) {
	t.Helper()
	require.NoError(t, gdb.Create(&models.ModelGrant{
		OrgID:         orgID,
		ModelName:     model,
		Attribute:     attribute,
		Action:        action,
		PrincipalType: principalType,
		PrincipalID:   principalID,
	}).Error)
}

func TestHasModelPermissionDirectGrant(t *testing.T) {
	gdb := newGateDB(t)
	gate := DBGate{DB: gdb}
	actor := Actor{UserID: 7, OrgID: 1}

	addGrant(t, gdb, 1, models.PrincipalUser, 7, "models.Post", "", "read")

	ok, err := gate.HasModelPermission(context.Background(), actor, "models.Post", "read")
	require.NoError(t, err)
	assert.True(t, ok)

	// Granted action only; others stay denied.
	ok, err = gate.HasModelPermission(context.Background(), actor, "models.Post", "delete")
	require.NoError(t, err)
	assert.False(t, ok)

	// An attribute grant alone does not confer the model-level action.
	addGrant(t, gdb, 1, models.PrincipalUser, 7, "models.Post", "title", "update")
	ok, err = gate.HasModelPermission(context.Background(), actor, "models.Post", "update")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasModelPermissionRoleGrant(t *testing.T) {
	gdb := newGateDB(t)
	gate := DBGate{DB: gdb}
	actor := Actor{UserID: 7, OrgID: 1}

	require.NoError(t, gdb.Create(&models.UserRole{UserID: 7, RoleID: 3, OrgID: 1}).Error)
	addGrant(t, gdb, 1, models.PrincipalRole, 3, "models.Post", "", "read")

	ok, err := gate.HasModelPermission(context.Background(), actor, "models.Post", "read")
	require.NoError(t, err)
	assert.True(t, ok)

	// Same role in another organization does not carry over.
	other := Actor{UserID: 7, OrgID: 2}
	ok, err = gate.HasModelPermission(context.Background(), other, "models.Post", "read")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasModelPermissionOrgIsolation(t *testing.T) {
	gdb := newGateDB(t)
	gate := DBGate{DB: gdb}

	addGrant(t, gdb, 2, models.PrincipalUser, 7, "models.Post", "", "read")

	ok, err := gate.HasModelPermission(context.Background(), Actor{UserID: 7, OrgID: 1}, "models.Post", "read")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthorizedAttributesIntersection(t *testing.T) {
	gdb := newGateDB(t)
	gate := DBGate{DB: gdb}
	actor := Actor{UserID: 7, OrgID: 1}

	addGrant(t, gdb, 1, models.PrincipalUser, 7, "models.Post", "title", "read")
	addGrant(t, gdb, 1, models.PrincipalUser, 7, "models.Post", "id", "read")
	addGrant(t, gdb, 1, models.PrincipalUser, 7, "models.Post", "not_a_column", "read")
	addGrant(t, gdb, 1, models.PrincipalUser, 7, "models.Post", "body", "update")

	got, err := gate.AuthorizedAttributes(context.Background(), actor, "models.Post", "read", postColumns)
	require.NoError(t, err)
	// Column order of the model wins; grants outside the schema vanish.
	assert.Equal(t, []string{"id", "title"}, got)
}

func TestAuthorizedAttributesWildcard(t *testing.T) {
	gdb := newGateDB(t)
	gate := DBGate{DB: gdb}
	actor := Actor{UserID: 7, OrgID: 1}

	addGrant(t, gdb, 1, models.PrincipalUser, 7, "models.Post", "*", "read")

	got, err := gate.AuthorizedAttributes(context.Background(), actor, "models.Post", "read", postColumns)
	require.NoError(t, err)
	assert.Equal(t, postColumns, got)
}

func TestAuthorizedAttributesMergesPrincipals(t *testing.T) {
	gdb := newGateDB(t)
	gate := DBGate{DB: gdb}
	actor := Actor{UserID: 7, OrgID: 1}

	require.NoError(t, gdb.Create(&models.UserRole{UserID: 7, RoleID: 3, OrgID: 1}).Error)
	addGrant(t, gdb, 1, models.PrincipalUser, 7, "models.Post", "title", "read")
	addGrant(t, gdb, 1, models.PrincipalRole, 3, "models.Post", "body", "read")

	got, err := gate.AuthorizedAttributes(context.Background(), actor, "models.Post", "read", postColumns)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "body"}, got)
}

func TestAuthorizedAttributesNoGrants(t *testing.T) {
	gdb := newGateDB(t)
	gate := DBGate{DB: gdb}

	got, err := gate.AuthorizedAttributes(context.Background(), Actor{UserID: 7, OrgID: 1}, "models.Post", "read", postColumns)
	require.NoError(t, err)
	assert.Empty(t, got)
}
