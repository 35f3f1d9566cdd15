package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/doonfrs/trinacrud/internal/auth"
	"github.com/doonfrs/trinacrud/internal/crud"
)

// ListSchemas handles GET /schemas: the discovered, verified model
// descriptors, optionally narrowed to one name and to models the actor
// holds at least one action on.
func ListSchemas(svc *crud.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := auth.ActorFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		authorizedOnly := c.Query("authorized_only") == "true"
		descriptors, err := svc.Registry().Discover(c.Request.Context(), svc.Gate(), actor, c.Query("filter"), authorizedOnly)
		if err != nil {
			respondError(c, err)
			return
		}

		schemas := make([]gin.H, 0, len(descriptors))
		for _, d := range descriptors {
			relations := make([]gin.H, 0, len(d.Relations))
			for name, rel := range d.Relations {
				if rel.TargetName == "" {
					continue
				}
				relations = append(relations, gin.H{"name": name, "model": rel.TargetName})
			}
			schemas = append(schemas, gin.H{
				"name":        d.Name,
				"table":       d.Table,
				"columns":     d.Columns,
				"primary_key": d.PrimaryKey,
				"relations":   relations,
			})
		}
		c.JSON(http.StatusOK, gin.H{"schemas": schemas})
	}
}
