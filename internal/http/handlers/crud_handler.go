package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/doonfrs/trinacrud/internal/auth"
	"github.com/doonfrs/trinacrud/internal/crud"
)

// ListRecords handles GET /crud/:model.
//
// Query parameters: attributes and with are comma lists; with_attributes
// and filters are JSON objects; page and per_page are integers.
func ListRecords(svc *crud.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := auth.ActorFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		opts := crud.ListOptions{
			Attributes: commaList(c.Query("attributes")),
			With:       commaList(c.Query("with")),
			Page:       intQuery(c, "page"),
			PerPage:    intQuery(c, "per_page"),
		}
		// Malformed JSON in either object param is ignored, consistent with
		// the fail-open policy for loosely-typed filter input.
		if raw := c.Query("with_attributes"); raw != "" {
			_ = json.Unmarshal([]byte(raw), &opts.WithAttributes)
		}
		if raw := c.Query("filters"); raw != "" {
			_ = json.Unmarshal([]byte(raw), &opts.Filters)
		}

		result, err := svc.List(c.Request.Context(), actor, c.Param("model"), opts)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// FindRecord handles GET /crud/:model/:id.
func FindRecord(svc *crud.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := auth.ActorFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		opts := crud.FindOptions{
			Attributes: commaList(c.Query("attributes")),
			With:       commaList(c.Query("with")),
		}
		if raw := c.Query("with_attributes"); raw != "" {
			_ = json.Unmarshal([]byte(raw), &opts.WithAttributes)
		}

		record, err := svc.Find(c.Request.Context(), actor, c.Param("model"), c.Param("id"), opts)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": record})
	}
}

// CreateRecord handles POST /crud/:model.
func CreateRecord(svc *crud.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := auth.ActorFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var data map[string]interface{}
		if err := c.ShouldBindJSON(&data); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		record, err := svc.Create(c.Request.Context(), actor, c.Param("model"), data)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": record})
	}
}

// UpdateRecord handles PUT /crud/:model/:id.
func UpdateRecord(svc *crud.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := auth.ActorFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var data map[string]interface{}
		if err := c.ShouldBindJSON(&data); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		record, err := svc.Update(c.Request.Context(), actor, c.Param("model"), c.Param("id"), data)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": record})
	}
}

// DeleteRecord handles DELETE /crud/:model/:id.
func DeleteRecord(svc *crud.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := auth.ActorFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if err := svc.Delete(c.Request.Context(), actor, c.Param("model"), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func commaList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intQuery(c *gin.Context, name string) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return v
}
