package routes

import (
	"net/http"

	"email-marketing-backend/internal/api/handlers"
	"email-marketing-backend/internal/api/middleware"
	"email-marketing-backend/internal/auth"
	"email-marketing-backend/internal/config"
	"email-marketing-backend/internal/iam"
	"email-marketing-backend/internal/mailer"
	"email-marketing-backend/internal/repository"
	"email-marketing-backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Dependencies are the runtime collaborators the router cannot build from config alone
type Dependencies struct {
	Catalog   *iam.Catalog
	Queue     service.JobEnqueuer
	Transport mailer.Transport
	// Registry backs /metrics. Nil means the default Prometheus registry.
	Registry *prometheus.Registry
}

// SetupRoutes configures all the routes for the application
func SetupRoutes(db *gorm.DB, cfg *config.Config, deps Dependencies) (*gin.Engine, error) {
	authConfig := auth.NewAuthConfig(cfg)
	if err := authConfig.ValidateConfig(); err != nil {
		return nil, err
	}
	policy, err := iam.ParseUnknownRolePolicy(cfg.UnknownRolePolicy)
	if err != nil {
		return nil, err
	}
	if deps.Catalog == nil {
		if deps.Catalog, err = iam.DefaultCatalog(); err != nil {
			return nil, err
		}
	}

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if deps.Registry != nil {
		registerer, gatherer = deps.Registry, deps.Registry
	}

	// Create router
	router := gin.New()

	// Add middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.NewHTTPMetrics(registerer).Middleware())

	validator := service.NewValidator()

	// Initialize repositories
	organizationRepo := repository.NewOrganizationRepository(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	contactRepo := repository.NewContactRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	sendRepo := repository.NewEmailSendRepository(db)

	// Initialize services
	tokens := auth.NewTokenService(authConfig.JWTSecret)
	iamService := service.NewIAMService(roleRepo, userRepo, deps.Catalog, policy)
	authService := service.NewAuthService(userRepo, organizationRepo, iamService, tokens, authConfig.TokenTTL, cfg.DefaultRoles, validator)
	organizationService := service.NewOrganizationService(organizationRepo, validator)
	contactService := service.NewContactService(contactRepo, organizationRepo, validator)
	templateService := service.NewTemplateService(templateRepo, deps.Transport, validator)
	campaignService := service.NewCampaignService(campaignRepo, templateRepo, contactRepo, sendRepo, deps.Queue, validator)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, cfg.AppVersion)
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(iamService)
	organizationHandler := handlers.NewOrganizationHandler(organizationService)
	contactHandler := handlers.NewContactHandler(contactService)
	templateHandler := handlers.NewTemplateHandler(templateService)
	campaignHandler := handlers.NewCampaignHandler(campaignService)

	gate := auth.NewGate(tokens, authConfig.APIKeys)

	// Health check routes
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/health/live", healthHandler.Live)
	router.GET("/api/healthz", healthHandler.APIHealth)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Swagger documentation route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Public auth routes
	public := router.Group("/api/auth")
	{
		public.POST("/register", authHandler.Register)
		public.POST("/login", authHandler.Login)
	}

	// Everything else requires a bearer token or an API key
	api := router.Group("/api")
	api.Use(gate.Authenticate())
	{
		api.GET("/auth/me", authHandler.Me)

		api.PUT("/users/:id/roles", gate.RequirePermission(iam.PermIAMManage), userHandler.AssignRoles)
		api.GET("/iam/roles", userHandler.Catalog)

		organizations := api.Group("/organizations")
		{
			organizations.GET("", gate.RequireInternal(), organizationHandler.ListOrganizations)
			organizations.POST("", gate.RequireInternal(), organizationHandler.CreateOrganization)
			organizations.GET("/:id", gate.RequireInternal(), organizationHandler.GetOrganization)

			contacts := organizations.Group("/:id/contacts",
				gate.RequirePermission(iam.PermJourneysBuild),
				gate.RequireSameOrganization("id"),
			)
			contacts.GET("", contactHandler.ListContacts)
			contacts.POST("", contactHandler.CreateContact)
		}

		templates := api.Group("/templates")
		{
			manage := gate.RequirePermission(iam.PermTemplatesManage)
			templates.GET("", manage, templateHandler.ListTemplates)
			templates.POST("", manage, templateHandler.CreateTemplate)
			templates.GET("/:id", manage, templateHandler.GetTemplate)
			templates.PUT("/:id", manage, templateHandler.UpdateTemplate)
			templates.DELETE("/:id", manage, templateHandler.DeleteTemplate)
			templates.POST("/:id/send-test", gate.RequirePermission(iam.PermEmailsSendTest), templateHandler.SendTest)
		}

		campaigns := api.Group("/campaigns")
		{
			manage := gate.RequirePermission(iam.PermCampaignsManage)
			campaigns.GET("", manage, campaignHandler.ListCampaigns)
			campaigns.POST("", manage, campaignHandler.CreateCampaign)
			campaigns.GET("/:id", manage, campaignHandler.GetCampaign)
			campaigns.GET("/:id/sends", manage, campaignHandler.ListSends)
			campaigns.POST("/:id/send", gate.RequirePermission(iam.PermCampaignsSend), campaignHandler.SendCampaign)
		}
	}

	// Catch-all route for undefined endpoints
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":      "Endpoint not found",
			"path":       c.Request.URL.Path,
			"method":     c.Request.Method,
			"request_id": c.GetString("request_id"),
		})
	})

	return router, nil
}

// SetupHealthRoutes sets up only health check routes (useful for testing)
func SetupHealthRoutes(db *gorm.DB, version string) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(db, version)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/health/live", healthHandler.Live)

	return router
}
