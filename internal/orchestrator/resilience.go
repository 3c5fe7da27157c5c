package orchestrator

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/aristath/filmcrew/internal/config"
	"github.com/aristath/filmcrew/internal/scheduler"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 100ms)
	MaxInterval         time.Duration // Maximum retry interval (default 10s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 2min)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// BreakerConfig configures the per-agent circuit breakers.
type BreakerConfig struct {
	ConsecutiveFailures uint32        // Failures that trip the breaker (default 5)
	OpenTimeout         time.Duration // Time open before probing again (default 30s)
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}
}

// ResilienceFromConfig converts the execution section of the config file.
func ResilienceFromConfig(cfg config.ExecutionConfig) (RetryConfig, BreakerConfig) {
	retry := RetryConfig{
		InitialInterval:     cfg.Retry.InitialInterval.Std(),
		MaxInterval:         cfg.Retry.MaxInterval.Std(),
		MaxElapsedTime:      cfg.Retry.MaxElapsedTime.Std(),
		Multiplier:          cfg.Retry.Multiplier,
		RandomizationFactor: cfg.Retry.RandomizationFactor,
	}
	breaker := BreakerConfig{OpenTimeout: cfg.Breaker.OpenTimeout.Std()}
	if cfg.Breaker.ConsecutiveFailures > 0 {
		breaker.ConsecutiveFailures = uint32(cfg.Breaker.ConsecutiveFailures)
	}
	return retry, breaker
}

// CircuitBreakerRegistry manages per-agent circuit breakers.
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewCircuitBreakerRegistry creates a new circuit breaker registry.
// Zero fields in cfg take their defaults.
func NewCircuitBreakerRegistry(cfg BreakerConfig) *CircuitBreakerRegistry {
	def := DefaultBreakerConfig()
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = def.ConsecutiveFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	return &CircuitBreakerRegistry{
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the circuit breaker for the given agent.
// Creates a new one if it doesn't exist.
func (r *CircuitBreakerRegistry) Get(agentID string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[agentID]; ok {
		return cb
	}

	threshold := r.cfg.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        agentID,
		MaxRequests: 1, // One probe in half-open state
		Interval:    0, // Don't clear counts automatically
		Timeout:     r.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !countsAgainstAgent(err)
		},
	})

	r.breakers[agentID] = cb
	return cb
}

// countsAgainstAgent reports whether err says something about the agent's
// health. Caller cancellation does not (a timeout does), and neither does a
// permanent error: those describe the task, such as an unknown agent, action
// or provider, and must not trip the breaker for the agent's valid tasks.
func countsAgainstAgent(err error) bool {
	if errors.Is(err, context.Canceled) || isUnservable(err) {
		return false
	}
	var permanent *backoff.PermanentError
	return !errors.As(err, &permanent)
}

// ResilientExecutor wraps an Executor with a per-attempt timeout, exponential
// backoff retry and a circuit breaker per agent. An open breaker fails the
// task immediately.
type ResilientExecutor struct {
	inner    Executor
	retry    RetryConfig
	breakers *CircuitBreakerRegistry
	timeout  time.Duration
}

// NewResilientExecutor wraps inner. timeout <= 0 disables the per-attempt timeout.
func NewResilientExecutor(inner Executor, retry RetryConfig, breakers *CircuitBreakerRegistry, timeout time.Duration) *ResilientExecutor {
	if breakers == nil {
		breakers = NewCircuitBreakerRegistry(DefaultBreakerConfig())
	}
	def := DefaultRetryConfig()
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = def.InitialInterval
	}
	if retry.MaxInterval <= 0 {
		retry.MaxInterval = def.MaxInterval
	}
	if retry.MaxElapsedTime <= 0 {
		retry.MaxElapsedTime = def.MaxElapsedTime
	}
	if retry.Multiplier <= 0 {
		retry.Multiplier = def.Multiplier
	}
	return &ResilientExecutor{inner: inner, retry: retry, breakers: breakers, timeout: timeout}
}

// Execute runs the task through the agent's breaker, retrying transient errors.
func (e *ResilientExecutor) Execute(ctx context.Context, task *scheduler.Task) (any, error) {
	cb := e.breakers.Get(task.AgentID)
	var result any

	operation := func() error {
		// Check context first - fail fast if cancelled
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		out, err := cb.Execute(func() (interface{}, error) {
			attemptCtx, cancel := e.attemptContext(ctx)
			defer cancel()
			return e.inner.Execute(attemptCtx, task)
		})
		if err != nil {
			// Circuit is open - don't retry
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			// Other errors will be retried
			return err
		}

		result = out
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.retry.InitialInterval
	policy.MaxInterval = e.retry.MaxInterval
	policy.MaxElapsedTime = e.retry.MaxElapsedTime
	policy.Multiplier = e.retry.Multiplier
	policy.RandomizationFactor = e.retry.RandomizationFactor

	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *ResilientExecutor) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}
