package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"

	"github.com/aksharma/outfit-fitcheck/internal/config"
	"github.com/aksharma/outfit-fitcheck/internal/controllers"
	"github.com/aksharma/outfit-fitcheck/internal/middleware"
	"github.com/aksharma/outfit-fitcheck/internal/models"
	"github.com/aksharma/outfit-fitcheck/internal/services"
	"github.com/aksharma/outfit-fitcheck/internal/views"
	"github.com/aksharma/outfit-fitcheck/migrations"
	"github.com/aksharma/outfit-fitcheck/templates"
)

func main() {
	cfg := config.MustLoad()

	if err := run(cfg); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func run(cfg *config.Config) error {
	// Setup the Database ---------------
	db, err := models.Open(models.PostgresConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	if err := models.MigrateFS(db, migrations.FS, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// Setup services ---------------
	userService := models.NewUserService(db, cfg.Limits.DefaultUserQuota)
	sessionService := models.NewSessionService(db)
	fitcheckService := models.NewFitCheckService(db)

	openRouterClient := services.NewOpenRouterClient(cfg.OpenRouter.APIKey)
	openRouterClient.Referer = cfg.OpenRouter.SiteURL
	openRouterClient.AppTitle = cfg.OpenRouter.SiteName

	analyzer := services.NewFitCheckAnalyzer(
		openRouterClient,
		cfg.OpenRouter.VisionModel,
		cfg.OpenRouter.TextModel,
	)

	// Setup templates ---------------
	homeTpl := views.MustParseFS(templates.FS, "pages/home.gohtml")
	signUpTpl := views.MustParseFS(templates.FS, "pages/signup.gohtml")
	signInTpl := views.MustParseFS(templates.FS, "pages/signin.gohtml")
	dashboardTpl := views.MustParseFS(templates.FS, "pages/dashboard.gohtml")
	fitcheckFormTpl := views.MustParseFS(templates.FS, "pages/fitcheck.gohtml")
	fitcheckResultTpl := views.MustParseFS(templates.FS, "pages/result.gohtml")

	// Setup controllers ---------------
	staticController := controllers.NewStaticController(controllers.StaticTemplates{
		Home: homeTpl,
	})
	authController := controllers.NewAuthController(
		userService,
		sessionService,
		controllers.AuthTemplates{SignUp: signUpTpl, SignIn: signInTpl},
		cfg.Security.SecureCookies,
	)
	dashboardController := controllers.NewDashboardController(
		fitcheckService,
		dashboardTpl,
		cfg.Limits.DashboardPageSize,
	)
	fitcheckController := controllers.NewFitCheckController(
		fitcheckService,
		userService,
		analyzer,
		controllers.FitCheckTemplates{Form: fitcheckFormTpl, Result: fitcheckResultTpl},
		cfg.Limits.MaxUploadBytes,
	)

	// Setup middleware ---------------
	csrfMw := csrf.Protect(
		[]byte(cfg.Security.CSRFKey),
		csrf.Secure(cfg.Security.SecureCookies),
		csrf.Path("/"),
	)
	authMw := middleware.NewAuthMiddleware(sessionService, controllers.CookieSession)

	// Setup router ---------------
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(csrfMw)
	r.Use(authMw.SetUser)

	r.Get("/", staticController.GetHome)
	r.Get("/healthz", controllers.HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(authMw.RequireNoUser)
		r.Get("/signup", authController.GetSignUp)
		r.Post("/signup", authController.PostSignUp)
		r.Get("/signin", authController.GetSignIn)
		r.Post("/signin", authController.PostSignIn)
	})

	r.Group(func(r chi.Router) {
		r.Use(authMw.RequireUser)
		r.Get("/dashboard", dashboardController.GetDashboard)
		r.Get("/fitcheck", fitcheckController.GetFitCheck)
		r.Post("/fitcheck", fitcheckController.PostFitCheck)
		r.Get("/fitcheck/{id}", fitcheckController.GetResult)
		r.Post("/fitcheck/{id}/delete", fitcheckController.DeleteFitCheck)
		r.Post("/logout", authController.PostLogout)
	})

	// Start server ---------------
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Starting server on %s (%s)", cfg.Server.Address, cfg.Server.Environment)
	return server.ListenAndServe()
}
