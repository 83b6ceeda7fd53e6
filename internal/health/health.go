package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded means only non-critical checks failed.
	StatusDegraded Status = "degraded"
	StatusUnknown  Status = "unknown"
)

// Check probes one dependency. A nil error means healthy.
type Check struct {
	Name     string
	Critical bool
	Timeout  time.Duration
	Probe    func(ctx context.Context) error
}

// Result is the outcome of one check.
type Result struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Critical bool          `json:"critical"`
	Duration time.Duration `json:"duration"`
}

// Report is the outcome of every registered check.
type Report struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Results   []Result  `json:"results"`
}

// Checker runs registered checks concurrently.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
}

// DefaultTimeout applies to checks registered without one.
const DefaultTimeout = 5 * time.Second

func NewChecker() *Checker {
	return &Checker{checks: make(map[string]Check), timeout: DefaultTimeout}
}

// Register adds or replaces a check.
func (c *Checker) Register(check Check) error {
	if check.Name == "" {
		return fmt.Errorf("health check name cannot be empty")
	}
	if check.Probe == nil {
		return fmt.Errorf("health check %q has no probe", check.Name)
	}
	if check.Timeout == 0 {
		check.Timeout = c.timeout
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[check.Name] = check
	return nil
}

// Run executes all checks and reports them sorted by name.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make([]Check, 0, len(c.checks))
	for _, check := range c.checks {
		checks = append(checks, check)
	}
	c.mu.RUnlock()

	results := make([]Result, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = run(ctx, check)
		}()
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return Report{Status: overall(results), Timestamp: time.Now(), Results: results}
}

func run(ctx context.Context, check Check) Result {
	ctx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	start := time.Now()
	err := check.Probe(ctx)
	result := Result{
		Name:     check.Name,
		Status:   StatusHealthy,
		Critical: check.Critical,
		Duration: time.Since(start),
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
	}
	return result
}

// overall is unhealthy if a critical check failed, degraded if any other
// check failed, and unknown with no checks.
func overall(results []Result) Status {
	if len(results) == 0 {
		return StatusUnknown
	}
	status := StatusHealthy
	for _, r := range results {
		if r.Status != StatusHealthy {
			if r.Critical {
				return StatusUnhealthy
			}
			status = StatusDegraded
		}
	}
	return status
}
