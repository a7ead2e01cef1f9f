package resilience

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Handler is the process-wide critical-path error handler described in
// §4.5.1: it wraps any operation associated with a Path, enforcing
// per-path timeout, circuit-breaker short-circuiting, and panic safety,
// and it appends every failure on a critical path to a bounded error ring
// (failures on non-critical paths are only logged).
type Handler struct {
	registry *Registry
	ring     *Ring
	log      *zap.Logger
}

func NewHandler(registry *Registry, ringCapacity int, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{registry: registry, ring: NewRing(ringCapacity), log: log}
}

// Operation is the unit of work executed under critical-path protection.
type Operation func(ctx context.Context) (interface{}, error)

// Execute runs op under path's protection, matching the §4.5.1 pseudocode:
// fail fast on an open breaker, enforce the path timeout, catch panics as
// SystemPanic, and record success/failure against the breaker.
func (h *Handler) Execute(ctx context.Context, path Path, component string, op Operation) (result interface{}, err error) {
	cfg := h.registry.Config(path)

	if cfg.IsCritical {
		b := h.registry.get(path)
		if !b.Allow() {
			cbErr := New(KindCircuitBreaker, "", SeverityHigh, false,
				fmt.Sprintf("circuit breaker open for path %s", path), nil)
			h.record(component, cbErr)
			return nil, cbErr
		}

		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}
	}

	result, err = h.runProtected(ctx, path, op)

	if !cfg.IsCritical {
		if err != nil {
			h.log.Warn("non-critical operation failed", zap.String("path", string(path)), zap.Error(err))
		}
		return result, err
	}

	b := h.registry.get(path)
	if err != nil {
		b.RecordFailure()
		if re, ok := err.(*Error); ok {
			h.record(component, re)
		} else {
			h.record(component, New(KindGeneric, "", SeverityMedium, false, err.Error(), err))
		}
		return result, err
	}
	b.RecordSuccess()
	return result, nil
}

// runProtected invokes op, converting a panic into a SystemPanic *Error
// rather than letting it propagate and terminate the worker.
func (h *Handler) runProtected(ctx context.Context, path Path, op Operation) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = New(KindRecovery, "system_panic", SeverityCritical, false,
				fmt.Sprintf("recovered panic: %v", r), nil)
		}
	}()

	type out struct {
		result interface{}
		err    error
	}
	ch := make(chan out, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- out{nil, New(KindRecovery, "system_panic", SeverityCritical, false,
					fmt.Sprintf("recovered panic: %v", r), nil)}
				return
			}
		}()
		res, e := op(ctx)
		ch <- out{res, e}
	}()

	select {
	case <-ctx.Done():
		kind, sub := timeoutKind(path)
		return nil, New(kind, sub, SeverityMedium, true, fmt.Sprintf("%s operation timed out", path), ctx.Err())
	case o := <-ch:
		return o.result, o.err
	}
}

func (h *Handler) record(component string, err *Error) {
	id := fmt.Sprintf("%d", len(h.ring.Snapshot())+1)
	h.ring.Push(RecordFromError(id, component, err))
	switch err.Severity {
	case SeverityCritical, SeverityHigh:
		h.log.Error("critical-path error", zap.String("component", component), zap.String("kind", string(err.Kind)), zap.String("message", err.Message))
	default:
		h.log.Info("critical-path error", zap.String("component", component), zap.String("kind", string(err.Kind)), zap.String("message", err.Message))
	}
}

// Errors returns a snapshot of recorded error records, oldest first.
func (h *Handler) Errors() []Record { return h.ring.Snapshot() }

// Registry exposes the breaker registry for health aggregation.
func (h *Handler) Registry() *Registry { return h.registry }
