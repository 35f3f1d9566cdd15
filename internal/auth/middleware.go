package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/doonfrs/trinacrud/internal/authz"
	"github.com/doonfrs/trinacrud/internal/models"
)

const actorKey = "actor"

// Claims is the JWT claims structure issued at login.
type Claims struct {
	UserID int64  `json:"uid"`
	OrgID  int64  `json:"oid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// JWT validates a bearer token from the Authorization header or a "token"
// cookie, verifies the user is still active, and stores the resulting
// actor on the request context.
func JWT(db *gorm.DB, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.GetHeader("Authorization")
		if tokenStr == "" {
			if cookie, err := c.Cookie("token"); err == nil {
				tokenStr = "Bearer " + cookie
			}
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		tokenStr = strings.TrimSpace(strings.TrimPrefix(tokenStr, "Bearer "))

		token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		claims, ok := token.Claims.(*Claims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			return
		}

		// The token may outlive the account; re-check against the store.
		var user models.User
		if err := db.First(&user, claims.UserID).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if user.Status != models.UserActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account suspended"})
			return
		}

		c.Set(actorKey, authz.Actor{UserID: user.ID, OrgID: user.OrgID, Email: user.Email})
		c.Next()
	}
}

// ActorFrom returns the authenticated actor stored by the JWT middleware.
func ActorFrom(c *gin.Context) (authz.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return authz.Actor{}, false
	}
	actor, ok := v.(authz.Actor)
	return actor, ok
}
