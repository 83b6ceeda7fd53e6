package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error   { return nil }
func fail(context.Context) error { return errors.New("down") }

func TestChecker_Register(t *testing.T) {
	c := NewChecker()
	assert.Error(t, c.Register(Check{Probe: ok}))
	assert.Error(t, c.Register(Check{Name: "db"}))
	assert.NoError(t, c.Register(Check{Name: "db", Probe: ok}))
}

func TestChecker_Run(t *testing.T) {
	tests := []struct {
		name   string
		checks []Check
		want   Status
	}{
		{"no checks", nil, StatusUnknown},
		{"all healthy", []Check{{Name: "db", Critical: true, Probe: ok}, {Name: "crypto", Probe: ok}}, StatusHealthy},
		{"non critical failure", []Check{{Name: "db", Critical: true, Probe: ok}, {Name: "storage", Probe: fail}}, StatusDegraded},
		{"critical failure", []Check{{Name: "db", Critical: true, Probe: fail}, {Name: "storage", Probe: ok}}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for _, check := range tt.checks {
				require.NoError(t, c.Register(check))
			}
			report := c.Run(context.Background())
			assert.Equal(t, tt.want, report.Status)
			assert.Len(t, report.Results, len(tt.checks))
		})
	}
}

func TestChecker_RunSortsAndReportsErrors(t *testing.T) {
	c := NewChecker()
	require.NoError(t, c.Register(Check{Name: "storage", Probe: fail}))
	require.NoError(t, c.Register(Check{Name: "database", Probe: ok}))

	report := c.Run(context.Background())
	require.Len(t, report.Results, 2)
	assert.Equal(t, "database", report.Results[0].Name)
	assert.Equal(t, "storage", report.Results[1].Name)
	assert.Equal(t, "down", report.Results[1].Error)
}

func TestChecker_Timeout(t *testing.T) {
	c := NewChecker()
	require.NoError(t, c.Register(Check{
		Name:     "slow",
		Critical: true,
		Timeout:  10 * time.Millisecond,
		Probe: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}))

	report := c.Run(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Contains(t, report.Results[0].Error, "deadline exceeded")
}
