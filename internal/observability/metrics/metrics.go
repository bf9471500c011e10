package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	tokenValidations   metric.Int64Counter
	scoreEvents        metric.Int64Counter
	achievementUnlocks metric.Int64Counter
	replayRejections   metric.Int64Counter
	rateLimitDenied    metric.Int64Counter
	leaderboardQueries metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "fanpulse"
	}
	meter := provider.Meter(name)

	tokenValidations, err := meter.Int64Counter("fanpulse_token_validations_total")
	if err != nil {
		return nil, err
	}
	scoreEvents, err := meter.Int64Counter("fanpulse_score_events_total")
	if err != nil {
		return nil, err
	}
	achievementUnlocks, err := meter.Int64Counter("fanpulse_achievement_unlocks_total")
	if err != nil {
		return nil, err
	}
	replayRejections, err := meter.Int64Counter("fanpulse_replay_rejections_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("fanpulse_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}
	leaderboardQueries, err := meter.Int64Counter("fanpulse_leaderboard_queries_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		tokenValidations:   tokenValidations,
		scoreEvents:        scoreEvents,
		achievementUnlocks: achievementUnlocks,
		replayRejections:   replayRejections,
		rateLimitDenied:    rateLimitDenied,
		leaderboardQueries: leaderboardQueries,
	}, nil
}

// RecordTokenValidation increments validation counts by outcome.
func (m *Metrics) RecordTokenValidation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.tokenValidations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordScoreEvent increments score event counts by activity type.
func (m *Metrics) RecordScoreEvent(ctx context.Context, activityType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("activity_type", strings.TrimSpace(activityType)))
	m.scoreEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAchievementUnlock increments unlock counts by achievement code.
func (m *Metrics) RecordAchievementUnlock(ctx context.Context, code string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("achievement", strings.TrimSpace(code)))
	m.achievementUnlocks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReplayRejection increments replay rejection counts.
func (m *Metrics) RecordReplayRejection(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.replayRejections.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLeaderboardQuery increments leaderboard read counts by scope type.
func (m *Metrics) RecordLeaderboardQuery(ctx context.Context, scopeType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("scope_type", strings.TrimSpace(scopeType)))
	m.leaderboardQueries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"outcome":       {},
	"activity_type": {},
	"achievement":   {},
	"reason":        {},
	"endpoint":      {},
	"scope_type":    {},
	"status_code":   {},
	"route":         {},
	"method":        {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
