package httpserver

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/doonfrs/trinacrud/internal/auth"
	"github.com/doonfrs/trinacrud/internal/authz"
	"github.com/doonfrs/trinacrud/internal/crud"
	"github.com/doonfrs/trinacrud/internal/http/handlers"
)

// NewRouter wires the public CRUD surface. The model name in the path is
// untrusted input end to end; the crud service decides what it maps to.
func NewRouter(db *gorm.DB, svc *crud.Service, gate authz.Gate, jwtSecret string) *gin.Engine {
	r := gin.Default()

	r.POST("/api/v1/auth/login", handlers.LoginHandler(db, jwtSecret))

	api := r.Group("/api/v1", auth.JWT(db, jwtSecret))
	{
		api.GET("/me", handlers.MeHandler(db))
		api.GET("/schemas", handlers.ListSchemas(svc))

		api.GET("/crud/:model", handlers.ListRecords(svc))
		api.GET("/crud/:model/:id", handlers.FindRecord(svc))
		api.POST("/crud/:model", handlers.CreateRecord(svc))
		api.PUT("/crud/:model/:id", handlers.UpdateRecord(svc))
		api.DELETE("/crud/:model/:id", handlers.DeleteRecord(svc))

		api.GET("/grants", handlers.ListGrants(db, gate))
		api.POST("/grants", handlers.CreateGrant(db, gate))
		api.DELETE("/grants/:id", handlers.DeleteGrant(db, gate))
	}

	return r
}
