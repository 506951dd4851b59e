package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(s Status) Check {
	return func(context.Context) ComponentHealth { return ComponentHealth{Status: s} }
}

func TestRunAggregates(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Status
		want   Status
	}{
		{"empty", nil, StatusUp},
		{"all up", map[string]Status{"a": StatusUp, "b": StatusUp}, StatusUp},
		{"degraded", map[string]Status{"a": StatusUp, "b": StatusDegraded}, StatusDegraded},
		{"down wins", map[string]Status{"a": StatusDown, "b": StatusDegraded, "c": StatusUp}, StatusDown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewChecker()
			for name, s := range tc.checks {
				c.Register(name, fixed(s))
			}
			report := c.Run(context.Background())
			assert.Equal(t, tc.want, report.Status)
			assert.Len(t, report.Components, len(tc.checks))
		})
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("redis", fixed(StatusDegraded))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, StatusDegraded, report.Status)

	c.Register("map_files", fixed(StatusDown))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandler(t *testing.T) {
	c := NewChecker()
	c.Register("x", fixed(StatusDown))
	rec := httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}
