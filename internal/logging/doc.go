// Package logging provides structured logging for signald.
//
// # Overview
//
// The package wraps Zap with:
//   - A custom Trace level (-2, below Debug)
//   - Automatic context fields (trace_id, span_id, source, operation, request.id)
//   - Secret redaction by field name and by value pattern (bearer tokens,
//     Slack tokens, api keys)
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
//	cfg, err := logging.FromSettings(appCfg.Logging)
//	logger, err := logging.NewLogger(cfg)
//	defer logger.Sync()
//
//	ctx = logging.WithSource(ctx, "slack")
//	logger.Info(ctx, "fetch complete", zap.Int("signals", n))
//
// Components that take a plain *zap.Logger receive logger.Underlying().
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "fetch complete")
//	tl.AssertLogged(t, zapcore.InfoLevel, "fetch complete")
package logging
