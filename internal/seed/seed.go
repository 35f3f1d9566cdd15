package seed

import (
	"os"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/doonfrs/trinacrud/internal/crud"
	"github.com/doonfrs/trinacrud/internal/logging"
	"github.com/doonfrs/trinacrud/internal/models"
)

// GrantsModel matches the reserved name the grant-management endpoints
// are gated on.
const grantsModel = "authz.grants"

// FirstSetup makes sure a default organization, roles, an admin account
// and a workable grant set exist. Safe to run on every boot.
func FirstSetup(db *gorm.DB, modelNames []string) error {
	org := models.Organization{Name: "Default Organization", Slug: "default"}
	if err := db.Where("slug = ?", org.Slug).FirstOrCreate(&org).Error; err != nil {
		return err
	}

	adminRole := models.Role{OrgID: org.ID, Name: "Administrator", Slug: "admin", IsSystem: true}
	editorRole := models.Role{OrgID: org.ID, Name: "Editor", Slug: "editor"}
	viewerRole := models.Role{OrgID: org.ID, Name: "Viewer", Slug: "viewer"}
	for _, role := range []*models.Role{&adminRole, &editorRole, &viewerRole} {
		if err := db.Where("org_id = ? AND slug = ?", org.ID, role.Slug).FirstOrCreate(role).Error; err != nil {
			return err
		}
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin12345"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := models.User{
		OrgID:        org.ID,
		Email:        "admin@example.com",
		Name:         "Administrator",
		PasswordHash: string(hash),
		Status:       models.UserActive,
	}
	if err := db.Where("org_id = ? AND email = ?", org.ID, admin.Email).FirstOrCreate(&admin).Error; err != nil {
		return err
	}
	link := models.UserRole{UserID: admin.ID, RoleID: adminRole.ID, OrgID: org.ID}
	if err := db.Where(&link).FirstOrCreate(&link).Error; err != nil {
		return err
	}

	// Administrator: every action and every column on every exposed model,
	// plus the grant-management surface itself.
	adminModels := append(append([]string(nil), modelNames...), grantsModel)
	for _, model := range adminModels {
		for _, action := range crud.Actions {
			if err := ensureGrant(db, org.ID, adminRole.ID, model, "", action.String()); err != nil {
				return err
			}
			if err := ensureGrant(db, org.ID, adminRole.ID, model, "*", action.String()); err != nil {
				return err
			}
		}
	}

	// Viewer: read-only over the exposed models.
	for _, model := range modelNames {
		if err := ensureGrant(db, org.ID, viewerRole.ID, model, "", crud.ActionRead.String()); err != nil {
			return err
		}
		if err := ensureGrant(db, org.ID, viewerRole.ID, model, "*", crud.ActionRead.String()); err != nil {
			return err
		}
	}

	logging.Infof("seed complete: org=%s admin=%s models=%d", org.Slug, admin.Email, len(modelNames))
	return nil
}

func ensureGrant(db *gorm.DB, orgID, roleID int64, model, attribute, action string) error {
	grant := models.ModelGrant{
		OrgID:         orgID,
		ModelName:     model,
		Attribute:     attribute,
		Action:        action,
		PrincipalType: models.PrincipalRole,
		PrincipalID:   roleID,
	}
	return db.Where(map[string]interface{}{
		"org_id":         orgID,
		"model_name":     model,
		"attribute":      attribute,
		"action":         action,
		"principal_type": models.PrincipalRole,
		"principal_id":   roleID,
	}).FirstOrCreate(&grant).Error
}
