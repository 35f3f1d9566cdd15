package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/doonfrs/trinacrud/internal/auth"
	"github.com/doonfrs/trinacrud/internal/models"
)

// LoginHandler authenticates the user and returns a signed JWT.
func LoginHandler(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var user models.User
		if err := db.Where("email = ?", input.Email).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}

		claims := auth.Claims{
			UserID: user.ID,
			OrgID:  user.OrgID,
			Email:  user.Email,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
				IssuedAt:  jwt.NewNumericDate(time.Now()),
			},
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		tokenString, err := token.SignedString([]byte(jwtSecret))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
			return
		}

		c.SetCookie("token", tokenString, 3600*24, "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{
			"token": tokenString,
			"user": gin.H{
				"email":  user.Email,
				"name":   user.Name,
				"org_id": user.OrgID,
			},
		})
	}
}

// MeHandler returns the authenticated actor with role slugs.
func MeHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := auth.ActorFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var slugs []string
		err := db.Table("roles").
			Joins("JOIN user_roles ur ON ur.role_id = roles.id").
			Where("ur.user_id = ? AND ur.org_id = ?", actor.UserID, actor.OrgID).
			Pluck("roles.slug", &slugs).Error
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user_id": actor.UserID,
			"org_id":  actor.OrgID,
			"email":   actor.Email,
			"roles":   slugs,
		})
	}
}
