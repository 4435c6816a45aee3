package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/taskchat-dev/taskchat/pkg/api"
)

// Prometheus metrics for capability execution.
var (
	capabilityExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskchat_capability_executions_total",
			Help: "Total capability executions",
		},
		[]string{"capability", "status"},
	)

	capabilityDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskchat_capability_duration_seconds",
			Help:    "Capability execution duration",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"capability"},
	)
)

func init() {
	prometheus.MustRegister(capabilityExecutions, capabilityDuration)
}

// Registry is a name-keyed table of capability providers. The set is fixed
// at startup: registration happens during wiring, execution afterwards.
type Registry struct {
	mu sync.RWMutex

	// providers stores registered providers in insertion order.
	order     []string
	providers map[string]Provider
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider. Names are resolved first-come, first-served: a
// duplicate registration loses and a warning is logged.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	def := p.Definition()
	if _, ok := r.providers[def.Name]; ok {
		slog.Warn("capability name conflict, keeping first provider", "capability", def.Name)
		return
	}
	r.providers[def.Name] = p
	r.order = append(r.order, def.Name)

	slog.Info("registered capability", "capability", def.Name)
}

// Has reports whether the named capability is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[name]
	return ok
}

// Definitions returns all capability definitions in registration order.
func (r *Registry) Definitions() []api.CapabilityDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]api.CapabilityDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.providers[name].Definition())
	}
	return defs
}

// Execute routes the call to the named provider, records metrics, and
// recovers from panics. A provider panic is converted into a DomainError so
// a single misbehaving capability cannot take down the turn.
func (r *Registry) Execute(ctx context.Context, name, principal string, args json.RawMessage) (result json.RawMessage, err error) {
	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no provider registered for capability %q", name)
	}

	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("capability provider panicked",
				"capability", name,
				"panic", rec,
			)
			result = nil
			err = &DomainError{
				Code:    api.ToolErrorExecution,
				Message: fmt.Sprintf("internal error executing %q", name),
			}
			capabilityExecutions.WithLabelValues(name, "panic").Inc()
			capabilityDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}
	}()

	result, err = p.Execute(ctx, principal, args)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		if _, domain := err.(*DomainError); domain {
			status = "domain_error"
		} else {
			status = "error"
		}
	}

	capabilityExecutions.WithLabelValues(name, status).Inc()
	capabilityDuration.WithLabelValues(name).Observe(duration)

	return result, err
}
