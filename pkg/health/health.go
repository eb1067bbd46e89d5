package health

import (
	"net/http"
	"sync"
	"time"

	"alertnet/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Status represents the health status of a component
type Status string

const (
	// StatusUp indicates a component is working correctly
	StatusUp Status = "up"
	// StatusDown indicates a component is not working
	StatusDown Status = "down"
	// StatusDegraded indicates a component is working with reduced functionality
	StatusDegraded Status = "degraded"
)

// Component represents a system component that can be health-checked
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Check represents a health check function
type Check func() (Status, string, error)

// Checker manages health checks for the system
type Checker struct {
	checks      map[string]Check
	components  map[string]*Component
	checkPeriod time.Duration
	mutex       sync.RWMutex
	log         *logger.Logger
}

// NewChecker creates a new health checker
func NewChecker(log *logger.Logger, checkPeriod time.Duration) *Checker {
	checker := &Checker{
		checks:      make(map[string]Check),
		components:  make(map[string]*Component),
		checkPeriod: checkPeriod,
		log:         log,
	}

	checker.RegisterCheck("self", func() (Status, string, error) {
		return StatusUp, "Health checker is running", nil
	})

	return checker
}

// RegisterCheck registers a new health check
func (c *Checker) RegisterCheck(name string, check Check) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.checks[name] = check
	c.components[name] = &Component{
		Name:        name,
		Status:      StatusDown,
		Description: "Not checked yet",
	}
}

// RunChecks executes all registered health checks once
func (c *Checker) RunChecks() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for name, check := range c.checks {
		status, description, err := check()
		component := c.components[name]
		component.Status = status
		component.Description = description
		component.LastChecked = time.Now()
		if err != nil {
			component.Error = err.Error()
			c.log.Warn("health check failed", "component", name, "error", err.Error())
		} else {
			component.Error = ""
		}
	}
}

// Start runs the checks periodically until the process exits
func (c *Checker) Start() {
	c.RunChecks()
	go func() {
		ticker := time.NewTicker(c.checkPeriod)
		defer ticker.Stop()
		for range ticker.C {
			c.RunChecks()
		}
	}()
}

// Overall reports the aggregate status: down if any component is down,
// degraded if any is degraded, up otherwise.
func (c *Checker) Overall() Status {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	overall := StatusUp
	for _, component := range c.components {
		switch component.Status {
		case StatusDown:
			return StatusDown
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

// Handler serves the current health snapshot
func (c *Checker) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		c.mutex.RLock()
		components := make([]Component, 0, len(c.components))
		for _, component := range c.components {
			components = append(components, *component)
		}
		c.mutex.RUnlock()

		status := c.Overall()
		code := http.StatusOK
		if status == StatusDown {
			code = http.StatusServiceUnavailable
		}

		ctx.JSON(code, gin.H{
			"status":     status,
			"components": components,
		})
	}
}
