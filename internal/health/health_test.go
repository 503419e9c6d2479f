// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvend/vmcd/internal/store"
)

type stubChecker struct {
	name   string
	result CheckResult
}

func (c stubChecker) Name() string                        { return c.name }
func (c stubChecker) Check(_ context.Context) CheckResult { return c.result }

func TestHealthAlwaysOK(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(stubChecker{name: "broken", result: CheckResult{Status: StatusUnhealthy, Error: "down"}})

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest("GET", "/healthz?verbose=true", nil))

	assert.Equal(t, 200, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Contains(t, resp.Checks, "broken")
}

func TestReadinessAggregation(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []Checker
		wantReady  bool
		wantStatus Status
		wantCode   int
	}{
		{
			name:       "no checkers is ready",
			wantReady:  true,
			wantStatus: StatusHealthy,
			wantCode:   200,
		},
		{
			name: "degraded stays ready",
			checkers: []Checker{
				stubChecker{name: "a", result: CheckResult{Status: StatusHealthy}},
				stubChecker{name: "b", result: CheckResult{Status: StatusDegraded}},
			},
			wantReady:  true,
			wantStatus: StatusDegraded,
			wantCode:   200,
		},
		{
			name: "unhealthy flips to 503",
			checkers: []Checker{
				stubChecker{name: "a", result: CheckResult{Status: StatusDegraded}},
				stubChecker{name: "b", result: CheckResult{Status: StatusUnhealthy, Error: "down"}},
			},
			wantReady:  false,
			wantStatus: StatusUnhealthy,
			wantCode:   503,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("test")
			for _, c := range tt.checkers {
				m.RegisterChecker(c)
			}

			rec := httptest.NewRecorder()
			m.ServeReady(rec, httptest.NewRequest("GET", "/readyz", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var resp ReadinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantReady, resp.Ready)
			assert.Equal(t, tt.wantStatus, resp.Status)
		})
	}
}

func TestStoreChecker(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.SetInt(store.KeyDeposit, 150))

	c := NewStoreChecker(st)
	assert.Equal(t, "counter_store", c.Name())
	res := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Contains(t, res.Message, "150")
}

func TestMachineChecker(t *testing.T) {
	state := "oos"
	c := NewMachineChecker(func() string { return state }, "oos")

	res := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)

	state = "idling"
	res = c.Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
}
