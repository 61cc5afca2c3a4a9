// Package main provides the Taskloom API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/taskloom/taskloom/pkg/persistence"
	"github.com/taskloom/taskloom/pkg/services"
	"github.com/taskloom/taskloom/pkg/web"
	"github.com/taskloom/taskloom/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *workflow.Registry
	validate    *validator.Validate
}

func NewAPI(logger *slog.Logger, p persistence.Persistence) *API {
	return &API{
		logger:      logger,
		persistence: p,
		registry:    workflow.NewRegistry(p, logger),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() (*fiber.App, error) {
	workflowService := services.NewWorkflow(a.persistence, a.registry, a.logger)

	ruleService, err := services.NewRule(a.persistence, a.logger)
	if err != nil {
		return nil, err
	}

	handlers := web.NewAPIHandlers(workflowService, ruleService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Taskloom API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/duplicate", handlers.DuplicateWorkflow)
	w.Get("/:id/validate", handlers.ValidateWorkflow)

	// State endpoints:
	w.Get("/:id/states", handlers.GetStates)
	w.Post("/:id/states", handlers.CreateState)
	w.Patch("/:id/states/:stateId", handlers.UpdateState)
	w.Delete("/:id/states/:stateId", handlers.DeleteState)
	w.Put("/:id/states/order", handlers.ReorderStates)

	// Transition endpoints:
	w.Get("/:id/transitions", handlers.GetTransitions)
	w.Post("/:id/transitions", handlers.CreateTransition)
	w.Patch("/:id/transitions/:transitionId", handlers.UpdateTransition)
	w.Delete("/:id/transitions/:transitionId", handlers.DeleteTransition)

	// Rule endpoints:
	w.Get("/:id/rules", handlers.GetRules)
	w.Post("/:id/rules", handlers.CreateRule)

	app.Post("/transitions/validate", handlers.ValidateTransition)

	r := app.Group("/rules")
	r.Get("/:ruleId", handlers.GetRule)
	r.Patch("/:ruleId", handlers.UpdateRule)
	r.Delete("/:ruleId", handlers.DeleteRule)
	r.Get("/:ruleId/executions", handlers.GetRuleExecutions)

	app.Get("/tasks/:taskId/executions", handlers.GetTaskExecutions)

	app.Get("/health", handlers.HealthCheck)

	return app, nil
}

func (a *API) Start(port int) error {
	app, err := a.App()
	if err != nil {
		return err
	}

	return app.Listen(":" + strconv.Itoa(port))
}
