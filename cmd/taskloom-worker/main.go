// Package main provides the Taskloom automation worker.
package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/taskloom/taskloom/pkg/automation"
	"github.com/taskloom/taskloom/pkg/cmd"
	"github.com/taskloom/taskloom/pkg/duedate"
	"github.com/taskloom/taskloom/pkg/log"
	"github.com/taskloom/taskloom/pkg/otelhelper"
	"github.com/taskloom/taskloom/pkg/taskclient"
	"github.com/taskloom/taskloom/pkg/webhooks"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "taskloom-worker",
		EnableShellCompletion: true,
		Usage:                 "Run automation rules for task events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker list",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "task-service-url",
				Usage:   "Base URL of the task tracker's internal API",
				Sources: cli.EnvVars("TASK_SERVICE_URL"),
			},
			&cli.StringFlag{
				Name:    "task-service-token",
				Usage:   "Bearer token for the task service",
				Sources: cli.EnvVars("TASK_SERVICE_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "webhook-redis-addr",
				Usage:   "Redis address for the webhook delivery queue",
				Sources: cli.EnvVars("WEBHOOK_REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "due-date-cron",
				Usage:   "Cron expression for the due date scan (5-field)",
				Value:   "0 * * * *",
				Sources: cli.EnvVars("DUE_DATE_CRON"),
			},
			&cli.BoolFlag{
				Name:    "enable-tracing",
				Usage:   "Export OTLP traces for rule dispatch",
				Sources: cli.EnvVars("ENABLE_TRACING"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("taskloom-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Taskloom Worker")

			if command.Bool("enable-tracing") {
				_, err := otelhelper.NewTracer(ctx, "taskloom-worker")
				if err != nil {
					return err
				}
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), "worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			collaborators := automation.Collaborators{}

			var monitor *duedate.Monitor

			if taskServiceURL := command.String("task-service-url"); taskServiceURL != "" {
				client := taskclient.NewClient(taskServiceURL, command.String("task-service-token"), logger)
				collaborators.Tasks = client
				collaborators.Comments = client
				collaborators.Notifier = client

				monitor, err = duedate.NewMonitor(client, eventBus, command.String("due-date-cron"), logger)
				if err != nil {
					return err
				}
			} else {
				logger.WarnContext(ctx, "No task service configured; task actions will fail and due dates are not scanned")
			}

			if redisAddr := command.String("webhook-redis-addr"); redisAddr != "" {
				dispatcher, err := webhooks.NewDispatcher(ctx, webhooks.Config{Addr: redisAddr}, logger)
				if err != nil {
					return err
				}

				defer func() {
					err := dispatcher.Close()
					if err != nil {
						logger.ErrorContext(ctx, "Failed to close webhook dispatcher", "error", err)
					}
				}()

				collaborators.Webhooks = dispatcher
			}

			executor := automation.NewActionExecutor(collaborators, logger)
			engine := automation.NewEngine(persistence, executor, logger)

			worker := NewWorker(workerID, engine, eventBus, monitor, logger)

			return worker.Start()
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
