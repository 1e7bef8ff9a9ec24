package health

import (
	"context"
	"time"
)

// ConnectionState reports whether a broker connection is up
type ConnectionState interface {
	IsConnected() bool
}

// ConnectionChecker is healthy while the connection is up
type ConnectionChecker struct {
	name string
	conn ConnectionState
}

// NewConnectionChecker creates a checker for a broker connection
func NewConnectionChecker(name string, conn ConnectionState) *ConnectionChecker {
	return &ConnectionChecker{name: name, conn: conn}
}

func (c *ConnectionChecker) Name() string {
	return c.name
}

func (c *ConnectionChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.name, Timestamp: time.Now()}
	if c.conn.IsConnected() {
		result.Status = StatusHealthy
		result.Message = "connected"
	} else {
		result.Status = StatusUnhealthy
		result.Message = "not connected"
	}
	result.Duration = time.Since(result.Timestamp)
	return result
}

// ProbeChecker runs a probe function. A probe error is reported with the
// configured failure status.
type ProbeChecker struct {
	name      string
	probe     func(ctx context.Context) error
	onFailure Status
}

// NewProbeChecker creates a checker that is unhealthy when probe fails
func NewProbeChecker(name string, probe func(ctx context.Context) error) *ProbeChecker {
	return &ProbeChecker{name: name, probe: probe, onFailure: StatusUnhealthy}
}

// Degraded reports probe failures as degraded instead of unhealthy
func (c *ProbeChecker) Degraded() *ProbeChecker {
	c.onFailure = StatusDegraded
	return c
}

func (c *ProbeChecker) Name() string {
	return c.name
}

func (c *ProbeChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: c.name, Timestamp: start, Status: StatusHealthy}

	if err := c.probe(ctx); err != nil {
		result.Status = c.onFailure
		result.Message = "probe failed"
		result.Error = err.Error()
	}

	result.Duration = time.Since(start)
	return result
}
