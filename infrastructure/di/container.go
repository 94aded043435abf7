package di

import (
	"recipes-backend/application/commands/bus"
	"recipes-backend/application/ports"
	querybus "recipes-backend/application/queries/bus"
	"recipes-backend/infrastructure/config"
	"recipes-backend/interfaces/http/rest"
	"recipes-backend/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Table        ports.RecipeTable
	Locker       ports.RecipeLocker
	EventBus     ports.EventBus
	ImageSigner  ports.ImageSigner
	Metrics      *observability.Collector
	CommandBus   *bus.CommandBus
	QueryBus     *querybus.QueryBus
	RouterConfig rest.Config
}

// Router builds the HTTP router from the container
func (c *Container) Router() *rest.Router {
	return rest.NewRouter(c.CommandBus, c.QueryBus, c.RouterConfig, c.Logger)
}

// Shutdown flushes the logger
func (c *Container) Shutdown() {
	_ = c.Logger.Sync()
}
