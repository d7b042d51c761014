package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthRegistry_Check(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("down") }

	tests := []struct {
		name   string
		checks map[string]HealthChecker
		want   HealthStatus
	}{
		{"empty", nil, HealthStatusHealthy},
		{"all healthy", map[string]HealthChecker{
			"db": PingChecker(ok, true), "redis": PingChecker(ok, false),
		}, HealthStatusHealthy},
		{"optional down", map[string]HealthChecker{
			"db": PingChecker(ok, true), "redis": PingChecker(fail, false),
		}, HealthStatusDegraded},
		{"critical down", map[string]HealthChecker{
			"db": PingChecker(fail, true), "redis": PingChecker(fail, false),
		}, HealthStatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewHealthRegistry()
			for n, c := range tt.checks {
				r.Register(n, c)
			}
			report := r.Check(context.Background())
			assert.Equal(t, tt.want, report.Status)
			assert.Len(t, report.Checks, len(tt.checks))
			for _, res := range report.Checks {
				assert.NotEmpty(t, res.Duration)
			}
		})
	}
}

func TestHealthRegistry_FailureMessage(t *testing.T) {
	r := NewHealthRegistry()
	r.Register("rabbitmq", PingChecker(func(context.Context) error { return errors.New("connection refused") }, false))
	r.Register("db", PingChecker(func(context.Context) error { return nil }, true))

	assert.Equal(t, []string{"db", "rabbitmq"}, r.Names())
	report := r.Check(context.Background())
	assert.Equal(t, "connection refused", report.Checks["rabbitmq"].Message)
	assert.Empty(t, report.Checks["db"].Message)
}
