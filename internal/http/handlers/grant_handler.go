package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/doonfrs/trinacrud/internal/auth"
	"github.com/doonfrs/trinacrud/internal/authz"
	"github.com/doonfrs/trinacrud/internal/crud"
	"github.com/doonfrs/trinacrud/internal/models"
)

// GrantsModel is the reserved model name permission-management endpoints
// are themselves gated on.
const GrantsModel = "authz.grants"

// ListGrants returns the permission rules of the actor's organization.
func ListGrants(db *gorm.DB, gate authz.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireGrantAccess(c, gate, crud.ActionRead)
		if !ok {
			return
		}

		var grants []models.ModelGrant
		q := db.Where("org_id = ?", actor.OrgID).Order("id")
		if model := c.Query("model"); model != "" {
			q = q.Where("model_name = ?", model)
		}
		if err := q.Find(&grants).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"grants": grants})
	}
}

// CreateGrant inserts one permission rule.
func CreateGrant(db *gorm.DB, gate authz.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireGrantAccess(c, gate, crud.ActionCreate)
		if !ok {
			return
		}

		var input struct {
			ModelName     string `json:"model_name" binding:"required"`
			Attribute     string `json:"attribute"`
			Action        string `json:"action" binding:"required"`
			PrincipalType string `json:"principal_type" binding:"required,oneof=user role"`
			PrincipalID   int64  `json:"principal_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !crud.Action(input.Action).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
			return
		}
		name, err := crud.NormalizeName(input.ModelName)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model name"})
			return
		}

		grant := models.ModelGrant{
			OrgID:         actor.OrgID,
			ModelName:     name,
			Attribute:     input.Attribute,
			Action:        input.Action,
			PrincipalType: input.PrincipalType,
			PrincipalID:   input.PrincipalID,
		}
		if err := db.Create(&grant).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"grant": grant})
	}
}

// DeleteGrant removes one permission rule of the actor's organization.
func DeleteGrant(db *gorm.DB, gate authz.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireGrantAccess(c, gate, crud.ActionDelete)
		if !ok {
			return
		}

		result := db.Where("org_id = ?", actor.OrgID).Delete(&models.ModelGrant{}, c.Param("id"))
		if result.Error != nil {
			respondError(c, result.Error)
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func requireGrantAccess(c *gin.Context, gate authz.Gate, action crud.Action) (authz.Actor, bool) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return authz.Actor{}, false
	}
	permitted, err := gate.HasModelPermission(c.Request.Context(), actor, GrantsModel, action.String())
	if err != nil {
		respondError(c, err)
		return authz.Actor{}, false
	}
	if !permitted {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return authz.Actor{}, false
	}
	return actor, true
}
