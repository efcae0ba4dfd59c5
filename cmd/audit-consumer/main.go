package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/Vishesh-Tomer/school-erp/internal/infra"
)

// audit-consumer tails the audit topics and emits each entry as a structured
// log line, the hand-off point for downstream log shipping.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("audit consumer failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.KafkaEnabled {
		return fmt.Errorf("KAFKA_ENABLED must be true for the audit consumer")
	}

	groupID := os.Getenv("AUDIT_CONSUMER_GROUP")
	if groupID == "" {
		groupID = "audit-consumer"
	}

	actions := []string{
		domain.AuditRegister,
		domain.AuditLogin,
		domain.AuditLogout,
		domain.AuditForgotPassword,
		domain.AuditResetPassword,
		domain.AuditChangePassword,
		domain.AuditUpdateProfile,
		domain.AuditCreateAdmin,
		domain.AuditUpdateAdmin,
		domain.AuditDeleteAdmin,
		domain.AuditSetup2FA,
		domain.AuditVerify2FA,
	}

	logger.Info("audit-consumer starting", "brokers", cfg.KafkaBrokers, "group", groupID, "topics", len(actions))

	// One reader per action topic; all share the consumer group.
	var wg sync.WaitGroup
	for _, action := range actions {
		topic := "school-erp.audit." + action
		consumer := infra.NewEventConsumer(cfg.KafkaBrokers, topic, groupID, logger)

		wg.Add(1)
		go func(topic string, c *infra.EventConsumer) {
			defer wg.Done()
			defer c.Close()

			for {
				msg, err := c.ReadMessage(ctx)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return
					}
					logger.Error("read message failed", "topic", topic, "error", err)
					return
				}
				logger.Info("audit event",
					"topic", topic,
					"key", string(msg.Key),
					"value", string(msg.Value),
					"offset", msg.Offset,
				)
			}
		}(topic, consumer)
	}

	wg.Wait()
	logger.Info("audit-consumer stopped")
	return nil
}
