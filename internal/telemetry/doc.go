// Package telemetry wires OpenTelemetry tracing for signald.
//
// Tracing is off by default. When enabled, spans are exported over OTLP
// (gRPC or HTTP) and the aggregation manager opens one span per fan-out and
// one child span per adapter call.
//
//	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Observability, version), log)
//	defer tel.Shutdown(ctx)
//	tracer := tel.Tracer("signald/aggregate")
//
// Tests use NewTestTelemetry, which records spans in memory.
package telemetry
