package rest

import (
	"context"
	"net/http"
	"time"

	"recipes-backend/application/commands/bus"
	querybus "recipes-backend/application/queries/bus"
	"recipes-backend/interfaces/http/rest/handlers"
	"recipes-backend/interfaces/http/rest/middleware"
	pkgerrors "recipes-backend/pkg/errors"
	"recipes-backend/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Config selects the optional parts of the router
type Config struct {
	Auth           middleware.AuthConfig
	EnableCORS     bool
	AllowedOrigins []string
	// Debug adds error causes and stack traces to error responses
	Debug bool
	// Metrics, when set, records HTTP metrics and serves /metrics
	Metrics *observability.Collector
	// TraceName, when set, opens an X-Ray segment per request
	TraceName string
	// Ready reports whether backing services answer
	Ready   func(ctx context.Context) error
	Breaker *middleware.CircuitBreakerConfig
}

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	config     Config
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	config Config,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		config:     config,
		errors:     pkgerrors.NewErrorHandler(logger, config.Debug),
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() *chi.Mux {
	router := chi.NewRouter()

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.errors.HandleStatus(w, r, http.StatusNotFound, "no route for "+r.URL.Path)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		rt.errors.Handle(w, r, pkgerrors.NewMethodNotAllowedError(r.Method, r.URL.Path))
	})

	if rt.config.TraceName != "" {
		router.Use(func(next http.Handler) http.Handler {
			return observability.TraceHandler(rt.config.TraceName, next)
		})
	}
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestContext)
	router.Use(middleware.Logger(rt.logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(rt.errors.Middleware)
	if rt.config.Metrics != nil {
		router.Use(rt.config.Metrics.Middleware)
	}

	if rt.config.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.config.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.config.Metrics != nil {
		router.Handle("/metrics", rt.config.Metrics.Handler())
	}

	recipes := handlers.NewRecipeHandler(rt.commandBus, rt.queryBus, rt.errors, rt.logger)
	ingredients := handlers.NewIngredientHandler(rt.commandBus, rt.queryBus, rt.errors, rt.logger)
	instructions := handlers.NewInstructionHandler(rt.commandBus, rt.queryBus, rt.errors, rt.logger)
	images := handlers.NewImageHandler(rt.commandBus, rt.queryBus, rt.errors, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(25 * time.Second))
		if rt.config.Breaker != nil {
			r.Use(middleware.CircuitBreaker(*rt.config.Breaker, rt.errors, rt.logger))
		}

		// Public reads
		r.Get("/recipes", recipes.ListRecipes)
		r.Get("/recipe/{recipeId}", recipes.GetRecipe)
		r.Get("/recipe/{recipeId}/ingredient/{ingredientId}", ingredients.GetIngredient)
		r.Get("/recipe/{recipeId}/instruction/{instructionId}", instructions.GetInstruction)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(rt.config.Auth, rt.errors, rt.logger))

			r.Post("/recipe", recipes.CreateRecipe)
			r.Put("/recipe/{recipeId}", recipes.UpdateRecipe)
			r.Delete("/recipe/{recipeId}", recipes.DeleteRecipe)
			r.Get("/user/recipes", recipes.ListUserRecipes)

			r.Post("/recipe/{recipeId}/ingredient", ingredients.CreateIngredient)
			r.Put("/recipe/{recipeId}/ingredient/{ingredientId}", ingredients.UpdateIngredient)
			r.Delete("/recipe/{recipeId}/ingredient/{ingredientId}", ingredients.DeleteIngredient)

			r.Post("/recipe/{recipeId}/instruction", instructions.InsertInstruction)
			r.Put("/recipe/{recipeId}/instruction/{instructionId}", instructions.UpdateInstruction)
			r.Delete("/recipe/{recipeId}/instruction/{instructionId}", instructions.DeleteInstruction)
			r.Put("/recipe/{recipeId}/instructions/order", instructions.ReorderInstructions)

			r.Post("/recipe/{recipeId}/image-upload-url", images.GetUploadURL)
			r.Get("/recipe/{recipeId}/image-upload-url", images.GetUploadURL)
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if rt.config.Ready != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := rt.config.Ready(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			rt.errors.HandleStatus(w, req, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
