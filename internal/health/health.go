package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// ComponentHealth is the result of one checker.
type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type Response struct {
	Status     Status                     `json:"status"`
	Version    string                     `json:"version"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

type Checker interface {
	Check(ctx context.Context) ComponentHealth
	Name() string
}

// Registry runs every registered checker for the /health endpoint.
type Registry struct {
	version  string
	timeout  time.Duration
	mu       sync.RWMutex
	checkers []Checker
}

func NewRegistry(version string, checkers ...Checker) *Registry {
	return &Registry{version: version, timeout: 5 * time.Second, checkers: checkers}
}

func (r *Registry) Register(checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = append(r.checkers, checker)
}

// Check runs all checkers. Any unhealthy component makes the whole service
// unhealthy; a degraded one only degrades it.
func (r *Registry) Check(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.mu.RLock()
	checkers := r.checkers
	r.mu.RUnlock()

	components := make(map[string]ComponentHealth, len(checkers))
	overall := StatusHealthy
	for _, checker := range checkers {
		h := checker.Check(ctx)
		components[checker.Name()] = h

		if h.Status == StatusUnhealthy {
			overall = StatusUnhealthy
		} else if h.Status == StatusDegraded && overall == StatusHealthy {
			overall = StatusDegraded
		}
	}

	return Response{
		Status:     overall,
		Version:    r.version,
		Timestamp:  time.Now(),
		Components: components,
	}
}

// Handler serves GET /health. Degraded still answers 200.
func (r *Registry) Handler(c echo.Context) error {
	resp := r.Check(c.Request().Context())
	code := http.StatusOK
	if resp.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}

// DBChecker pings the SQL connection behind gorm.
type DBChecker struct {
	db *gorm.DB
}

func NewDBChecker(db *gorm.DB) *DBChecker {
	return &DBChecker{db: db}
}

func (d *DBChecker) Name() string {
	return "database"
}

func (d *DBChecker) Check(ctx context.Context) ComponentHealth {
	start := time.Now()
	sqlDB, err := d.db.DB()
	if err != nil {
		return ComponentHealth{Status: StatusUnhealthy, Message: fmt.Sprintf("database handle: %v", err)}
	}

	err = sqlDB.PingContext(ctx)
	latency := time.Since(start)
	if err != nil {
		return ComponentHealth{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("database ping failed: %v", err),
			Latency: latency.String(),
		}
	}
	return ComponentHealth{Status: StatusHealthy, Message: "connected", Latency: latency.String()}
}

// RedisChecker pings redis. Dedup falls back to memory without it, so a
// failure only degrades the service.
type RedisChecker struct {
	client *redis.Client
}

func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (r *RedisChecker) Name() string {
	return "redis"
}

func (r *RedisChecker) Check(ctx context.Context) ComponentHealth {
	if r.client == nil {
		return ComponentHealth{Status: StatusDegraded, Message: "not configured, using in-memory dedup"}
	}

	start := time.Now()
	err := r.client.Ping(ctx).Err()
	latency := time.Since(start)
	if err != nil {
		return ComponentHealth{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("redis ping failed: %v", err),
			Latency: latency.String(),
		}
	}
	return ComponentHealth{Status: StatusHealthy, Message: "connected", Latency: latency.String()}
}
