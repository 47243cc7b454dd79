package redis

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/boulevardgame/backend/internal/game/models"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// CircuitClosed means operations are allowed to proceed
	CircuitClosed CircuitState = iota
	// CircuitOpen means operations fail fast
	CircuitOpen
	// CircuitHalfOpen means a single probe operation is allowed
	CircuitHalfOpen
)

// CircuitBreaker guards Redis calls. When it opens, the sync layer
// reports the store as unavailable and games degrade to local mode
// instead of blocking on a dead backend.
type CircuitBreaker struct {
	mu               sync.Mutex
	failureThreshold uint
	failureCount     uint
	resetTimeout     time.Duration
	lastFailureTime  time.Time
	state            CircuitState
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(failureThreshold uint, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            CircuitClosed,
	}
}

// AllowRequest checks if a request should be allowed based on the circuit state
func (cb *CircuitBreaker) AllowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(cb.lastFailureTime) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			return true
		}
		return false
	default:
		// Half-open: let the probe through.
		return true
	}
}

// RecordSuccess resets the breaker to closed.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	cb.state = CircuitClosed
}

// RecordFailure counts a failure and opens the circuit at the
// threshold. A failed half-open probe reopens it immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = time.Now()
	if cb.state == CircuitHalfOpen {
		cb.state = CircuitOpen
		return
	}
	cb.failureCount++
	if cb.failureCount >= cb.failureThreshold {
		cb.state = CircuitOpen
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GuardedClient wraps a Redis client with a circuit breaker. Callers
// get models.ErrStoreUnavailable when the circuit is open, which is
// the signal the sync adapter uses to fall back to local play.
type GuardedClient struct {
	client  *redis.Client
	breaker *CircuitBreaker
	logger  *zap.SugaredLogger
}

// NewGuardedClient wraps client with breaker.
func NewGuardedClient(client *redis.Client, breaker *CircuitBreaker, logger *zap.SugaredLogger) *GuardedClient {
	return &GuardedClient{
		client:  client,
		breaker: breaker,
		logger:  logger,
	}
}

// Client returns the raw client for callers that manage their own
// failure handling (pub/sub subscriptions).
func (c *GuardedClient) Client() *redis.Client { return c.client }

// Do executes a Redis operation under the breaker.
func (c *GuardedClient) Do(operation func() error) error {
	if !c.breaker.AllowRequest() {
		c.logger.Warn("Circuit breaker is open, fast-failing Redis request")
		return models.ErrStoreUnavailable
	}

	if err := operation(); err != nil {
		c.breaker.RecordFailure()
		return err
	}

	c.breaker.RecordSuccess()
	return nil
}

// Connect establishes a connection to Redis with retry capabilities
func Connect(ctx context.Context, addr, password string, db int, log *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3, // the client retries individual operations itself
	})

	maxRetries := 5
	initialBackoff := 500 * time.Millisecond
	maxBackoff := 10 * time.Second

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = client.Ping(pingCtx).Err()
		cancel()

		if err == nil {
			log.Infow("Successfully connected to Redis", "attempt", attempt+1)
			return client, nil
		}

		// Exponential backoff with ±20% jitter.
		backoff := float64(initialBackoff) * math.Pow(2, float64(attempt))
		if backoff > float64(maxBackoff) {
			backoff = float64(maxBackoff)
		}
		jitter := 0.8 + 0.4*float64(time.Now().UnixNano()%1000)/1000.0
		backoffWithJitter := time.Duration(backoff * jitter)

		log.Warnw("Failed to connect to Redis, retrying",
			"attempt", attempt+1,
			"maxRetries", maxRetries,
			"backoff", backoffWithJitter,
			"error", err)

		select {
		case <-time.After(backoffWithJitter):
		case <-ctx.Done():
			_ = client.Close()
			return nil, fmt.Errorf("context cancelled while connecting to Redis: %w", ctx.Err())
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", maxRetries, err)
}

// CreateGuardedClient connects and wraps the client in a breaker with
// a 5-failure threshold and 10 second reset window.
func CreateGuardedClient(ctx context.Context, addr, password string, db int, logger *zap.SugaredLogger) (*GuardedClient, error) {
	client, err := Connect(ctx, addr, password, db, logger)
	if err != nil {
		return nil, err
	}

	breaker := NewCircuitBreaker(5, 10*time.Second)
	return NewGuardedClient(client, breaker, logger), nil
}
