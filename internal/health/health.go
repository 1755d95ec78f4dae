// Package health provides liveness and readiness checks for the service and
// its generation backend.
package health

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Checker is one health check.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
	// Critical checkers gate readiness; non-critical ones only degrade.
	Critical() bool
}

// Result is the outcome of one check.
type Result struct {
	Name     string `json:"name"`
	Healthy  bool   `json:"healthy"`
	Critical bool   `json:"critical"`
	Error    string `json:"error,omitempty"`
}

// Manager runs registered checkers on demand.
type Manager struct {
	mu       sync.RWMutex
	checkers []Checker
	logger   *zap.Logger
}

// NewManager creates an empty health manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// Register adds a checker.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// Check runs every checker and returns the results.
func (m *Manager) Check(ctx context.Context) []Result {
	m.mu.RLock()
	checkers := make([]Checker, len(m.checkers))
	copy(checkers, m.checkers)
	m.mu.RUnlock()

	results := make([]Result, 0, len(checkers))
	for _, c := range checkers {
		res := Result{Name: c.Name(), Healthy: true, Critical: c.Critical()}
		if err := c.Check(ctx); err != nil {
			res.Healthy = false
			res.Error = err.Error()
			m.logger.Warn("Health check failed",
				zap.String("checker", c.Name()),
				zap.Error(err),
			)
		}
		results = append(results, res)
	}
	return results
}

// Ready reports whether all critical checks pass.
func (m *Manager) Ready(ctx context.Context) bool {
	for _, res := range m.Check(ctx) {
		if res.Critical && !res.Healthy {
			return false
		}
	}
	return true
}

// GenerationChecker verifies the generation backend is reachable. Any HTTP
// response counts as reachable; auth and model errors are the pipeline's
// problem, not a liveness signal.
type GenerationChecker struct {
	baseURL string
	client  *http.Client
}

// NewGenerationChecker builds a checker for the given backend base URL.
func NewGenerationChecker(baseURL string) *GenerationChecker {
	return &GenerationChecker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (g *GenerationChecker) Name() string { return "generation_backend" }

// Critical is false: the service can accept connections while the backend is
// flapping; individual runs surface backend failures as error events.
func (g *GenerationChecker) Critical() bool { return false }

func (g *GenerationChecker) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
