// Package logger builds slog loggers for the service and provides attribute
// helpers with stable keys (account_id, plan_id, status, transition, ...).
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.App.Env, cfg.App.Name),
//		logger.WithContextValue("request_id", middleware.RequestIDKey),
//	)
//	log.InfoContext(ctx, "plan upgraded", logger.AccountID(acc.ID), logger.PlanID(acc.PlanID))
package logger
