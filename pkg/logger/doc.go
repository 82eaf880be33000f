// Package logger builds *slog.Logger instances for the service and provides
// attribute helpers that keep key names consistent across packages.
//
// New accepts functional options selecting level, format (text or JSON),
// output and static attributes. ContextExtractor callbacks pull request-scoped
// values out of context.Context on every record. WithSentry fans error-level
// records out to Sentry through github.com/samber/slog-multi and
// github.com/samber/slog-sentry/v2.
//
//	log := logger.New(
//		logger.WithEnvironment(environment.Production, "accountkit"),
//		logger.WithSentry(cfg.SentryDSN),
//	)
//	log.ErrorContext(ctx, "activation mail failed",
//		logger.AccountID(acc.ID), logger.Error(err))
package logger
