package main

import (
	"github.com/doonfrs/trinacrud/internal/authz"
	"github.com/doonfrs/trinacrud/internal/config"
	"github.com/doonfrs/trinacrud/internal/crud"
	"github.com/doonfrs/trinacrud/internal/db"
	httpserver "github.com/doonfrs/trinacrud/internal/http"
	"github.com/doonfrs/trinacrud/internal/logging"
	"github.com/doonfrs/trinacrud/internal/models"
	"github.com/doonfrs/trinacrud/internal/seed"
	"github.com/doonfrs/trinacrud/internal/validation"
)

func main() {
	cfg := config.Load()

	if err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		LogDir:     cfg.LogDir,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
	}); err != nil {
		panic(err)
	}

	gdb := db.Connect(cfg.DSN)
	db.AutoMigrate(gdb,
		&models.Organization{},
		&models.User{},
		&models.Role{},
		&models.UserRole{},
		&models.ModelGrant{},
		&models.AuditLog{},
		&models.Post{},
		&models.Comment{},
	)

	registry := crud.NewRegistry(crud.Config{
		AllowedNamespaces: cfg.AllowedNamespaces,
		ModelPaths:        cfg.ModelPaths,
	})
	register(registry, models.User{},
		crud.WithRules(crud.ActionCreate, map[string]interface{}{
			"email": "required,email",
			"name":  "required,max=200",
		}),
		crud.WithRules(crud.ActionUpdate, map[string]interface{}{
			"email": "omitempty,email",
			"name":  "omitempty,max=200",
		}),
	)
	register(registry, models.Post{},
		crud.WithRules(crud.ActionCreate, map[string]interface{}{
			"title": "required,max=255",
		}),
		crud.WithRules(crud.ActionUpdate, map[string]interface{}{
			"title": "omitempty,max=255",
		}),
	)
	register(registry, models.Comment{},
		crud.WithRules(crud.ActionCreate, map[string]interface{}{
			"post_id": "required",
			"body":    "required",
		}),
	)

	ownership := authz.NewColumnOwnership()
	ownership.SetPolicy("models.User", authz.OwnershipPolicy{OrgColumn: "org_id"})
	ownership.SetPolicy("models.Post", authz.OwnershipPolicy{OrgColumn: "org_id", OwnerColumn: "user_id"})
	ownership.SetPolicy("models.Comment", authz.OwnershipPolicy{OrgColumn: "org_id"})

	gate := authz.DBGate{DB: gdb}
	svc := crud.NewService(gdb, registry, gate, ownership, validation.New())

	if err := seed.FirstSetup(gdb, registry.Names()); err != nil {
		logging.Logger.Fatalf("seed failed: %v", err)
	}

	r := httpserver.NewRouter(gdb, svc, gate, cfg.JWTSecret)
	logging.Infof("server listening on :%s", cfg.AppPort)
	if err := r.Run(":" + cfg.AppPort); err != nil {
		logging.Logger.Fatalf("server exited: %v", err)
	}
}

func register(registry *crud.Registry, model crud.Model, opts ...crud.RegisterOption) {
	if err := registry.Register(model, opts...); err != nil {
		logging.Logger.Fatalf("model registration failed: %v", err)
	}
}
