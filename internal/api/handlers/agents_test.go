package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iteksmart/warden/internal/api/middleware"
	"github.com/iteksmart/warden/internal/models"
	"github.com/iteksmart/warden/internal/telemetry"
)

// mockAgentStore implements AgentsStore, AlertsStore and the ingestor's
// store.
type mockAgentStore struct {
	agents  map[uuid.UUID]*models.Agent
	metrics []*models.AgentMetric
	alerts  []*models.AgentAlert
}

func newMockAgentStore() *mockAgentStore {
	return &mockAgentStore{agents: make(map[uuid.UUID]*models.Agent)}
}

func (m *mockAgentStore) UpsertAgent(_ context.Context, agent *models.Agent) (*models.Agent, error) {
	for _, existing := range m.agents {
		if existing.OrgID == agent.OrgID && existing.Hostname == agent.Hostname {
			existing.OSType = agent.OSType
			existing.AgentVersion = agent.AgentVersion
			existing.CredentialHash = agent.CredentialHash
			return existing, nil
		}
	}
	m.agents[agent.ID] = agent
	return agent, nil
}

func (m *mockAgentStore) GetAgentForOrg(_ context.Context, orgID, agentID uuid.UUID) (*models.Agent, error) {
	agent, ok := m.agents[agentID]
	if !ok || agent.OrgID != orgID {
		return nil, nil
	}
	return agent, nil
}

func (m *mockAgentStore) ListAgents(_ context.Context, orgID uuid.UUID) ([]*models.Agent, error) {
	var out []*models.Agent
	for _, a := range m.agents {
		if a.OrgID == orgID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAgentStore) UpdateAgent(_ context.Context, agent *models.Agent) (bool, error) {
	_, ok := m.agents[agent.ID]
	return ok, nil
}

func (m *mockAgentStore) DeleteAgent(_ context.Context, orgID, agentID uuid.UUID) (bool, error) {
	agent, ok := m.agents[agentID]
	if !ok || agent.OrgID != orgID {
		return false, nil
	}
	delete(m.agents, agentID)
	return true, nil
}

func (m *mockAgentStore) TouchAgent(_ context.Context, agentID uuid.UUID, at time.Time) error {
	if agent, ok := m.agents[agentID]; ok {
		agent.LastSeen = &at
	}
	return nil
}

func (m *mockAgentStore) CreateAgentMetric(_ context.Context, metric *models.AgentMetric) error {
	m.metrics = append(m.metrics, metric)
	return nil
}

func (m *mockAgentStore) ListAgentMetrics(_ context.Context, agentID uuid.UUID, metricType models.MetricType, limit int) ([]*models.AgentMetric, error) {
	var out []*models.AgentMetric
	for _, metric := range m.metrics {
		if metric.AgentID != agentID {
			continue
		}
		if metricType != "" && metric.MetricType != metricType {
			continue
		}
		out = append(out, metric)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockAgentStore) CreateAgentAlert(_ context.Context, alert *models.AgentAlert) error {
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *mockAgentStore) ListAgentAlerts(_ context.Context, agentID uuid.UUID, unresolvedOnly bool, limit int) ([]*models.AgentAlert, error) {
	var out []*models.AgentAlert
	for _, a := range m.alerts {
		if a.AgentID != agentID {
			continue
		}
		if unresolvedOnly && a.IsResolved {
			continue
		}
		out = append(out, a)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockAgentStore) ResolveAgentAlert(_ context.Context, orgID, agentID, alertID uuid.UUID, resolvedBy string) (bool, error) {
	for _, a := range m.alerts {
		if a.ID == alertID && a.AgentID == agentID && a.OrgID == orgID {
			a.Resolve(resolvedBy)
			return true, nil
		}
	}
	return false, nil
}

func setupAgentTestRouter(store *mockAgentStore, orgID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeyOrgID, orgID)
		c.Next()
	})

	ingestor := telemetry.NewIngestor(store, zerolog.Nop())
	agentsHandler := NewAgentsHandler(store, ingestor, testCollector(), zerolog.Nop())
	alertsHandler := NewAlertsHandler(store, zerolog.Nop())

	api := r.Group("/api/v1")
	api.POST("/agents/register", agentsHandler.Register)
	api.GET("/agents", agentsHandler.List)
	api.GET("/agents/:id", agentsHandler.Get)
	api.PUT("/agents/:id", agentsHandler.Update)
	api.DELETE("/agents/:id", agentsHandler.Delete)
	api.POST("/agents/:id/metrics", agentsHandler.ReportMetrics)
	api.GET("/agents/:id/metrics", agentsHandler.ListMetrics)
	api.GET("/agents/:id/alerts", alertsHandler.List)
	api.PUT("/agents/:id/alerts/:alertId/resolve", alertsHandler.Resolve)
	return r
}

func TestRegisterAgent(t *testing.T) {
	orgID := uuid.New()

	t.Run("success", func(t *testing.T) {
		store := newMockAgentStore()
		r := setupAgentTestRouter(store, orgID)

		body := `{"hostname":"web-01","osType":"linux","agentVersion":"1.4.2"}`
		w := postJSON(r, "/api/v1/agents/register", body)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
		}

		var resp struct {
			Agent      models.Agent `json:"agent"`
			Credential string       `json:"agentCredential"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if resp.Agent.Hostname != "web-01" {
			t.Fatalf("expected hostname 'web-01', got %q", resp.Agent.Hostname)
		}
		if !strings.HasPrefix(resp.Credential, "agent_") {
			t.Fatalf("expected credential to start with 'agent_', got %q", resp.Credential)
		}
	})

	t.Run("re-registration keeps agent id", func(t *testing.T) {
		store := newMockAgentStore()
		r := setupAgentTestRouter(store, orgID)

		body := `{"hostname":"web-01","osType":"linux","agentVersion":"1.4.2"}`
		first := postJSON(r, "/api/v1/agents/register", body)
		second := postJSON(r, "/api/v1/agents/register", body)

		var a, b struct {
			Agent models.Agent `json:"agent"`
		}
		if err := json.Unmarshal(first.Body.Bytes(), &a); err != nil {
			t.Fatalf("failed to unmarshal first response: %v", err)
		}
		if err := json.Unmarshal(second.Body.Bytes(), &b); err != nil {
			t.Fatalf("failed to unmarshal second response: %v", err)
		}
		if a.Agent.ID != b.Agent.ID {
			t.Fatalf("expected stable agent id, got %s then %s", a.Agent.ID, b.Agent.ID)
		}
		if len(store.agents) != 1 {
			t.Fatalf("expected 1 agent, got %d", len(store.agents))
		}
	})

	t.Run("missing os type", func(t *testing.T) {
		store := newMockAgentStore()
		r := setupAgentTestRouter(store, orgID)

		w := postJSON(r, "/api/v1/agents/register", `{"hostname":"web-01","agentVersion":"1.4.2"}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", w.Code)
		}
	})
}

func TestGetAgentCrossTenant(t *testing.T) {
	orgID := uuid.New()
	store := newMockAgentStore()
	foreign := models.NewAgent(uuid.New(), "foreign-host", "linux")
	store.agents[foreign.ID] = foreign
	r := setupAgentTestRouter(store, orgID)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/agents/"+foreign.ID.String(), nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for foreign agent, got %d", w.Code)
	}
}

func TestReportMetrics(t *testing.T) {
	orgID := uuid.New()

	newAgent := func(store *mockAgentStore) *models.Agent {
		agent := models.NewAgent(orgID, "web-01", "linux")
		store.agents[agent.ID] = agent
		return agent
	}

	t.Run("healthy system report raises no alerts", func(t *testing.T) {
		store := newMockAgentStore()
		agent := newAgent(store)
		r := setupAgentTestRouter(store, orgID)

		body := `{"metricType":"system","metricData":{"cpu_percent":40,"memory_percent":55,"disk_percent":60}}`
		w := postJSON(r, "/api/v1/agents/"+agent.ID.String()+"/metrics", body)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var resp struct {
			Status string                `json:"status"`
			Alerts []models.AlertSummary `json:"alerts"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if resp.Status != "received" {
			t.Fatalf("expected status 'received', got %q", resp.Status)
		}
		if len(resp.Alerts) != 0 {
			t.Fatalf("expected no alerts, got %d", len(resp.Alerts))
		}
		if len(store.metrics) != 1 {
			t.Fatalf("expected 1 stored metric, got %d", len(store.metrics))
		}
		if agent.LastSeen == nil {
			t.Fatal("expected heartbeat to be recorded")
		}
	})

	t.Run("critical cpu raises alert", func(t *testing.T) {
		store := newMockAgentStore()
		agent := newAgent(store)
		r := setupAgentTestRouter(store, orgID)

		body := `{"metricType":"system","metricData":{"cpu_percent":95}}`
		w := postJSON(r, "/api/v1/agents/"+agent.ID.String()+"/metrics", body)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var resp struct {
			Alerts []models.AlertSummary `json:"alerts"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if len(resp.Alerts) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(resp.Alerts))
		}
		if resp.Alerts[0].Type != models.AlertTypeHighCPU {
			t.Fatalf("expected high_cpu alert, got %s", resp.Alerts[0].Type)
		}
		if resp.Alerts[0].Severity != models.AlertSeverityCritical {
			t.Fatalf("expected critical severity, got %s", resp.Alerts[0].Severity)
		}
	})

	t.Run("security report with disabled firewall", func(t *testing.T) {
		store := newMockAgentStore()
		agent := newAgent(store)
		r := setupAgentTestRouter(store, orgID)

		body := `{"metricType":"security","metricData":{"firewall_enabled":false}}`
		w := postJSON(r, "/api/v1/agents/"+agent.ID.String()+"/metrics", body)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var resp struct {
			Alerts []models.AlertSummary `json:"alerts"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if len(resp.Alerts) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(resp.Alerts))
		}
		if resp.Alerts[0].Message != "Firewall is disabled" {
			t.Fatalf("unexpected message %q", resp.Alerts[0].Message)
		}
	})

	t.Run("unknown agent", func(t *testing.T) {
		store := newMockAgentStore()
		r := setupAgentTestRouter(store, orgID)

		body := `{"metricType":"system","metricData":{"cpu_percent":40}}`
		w := postJSON(r, "/api/v1/agents/"+uuid.NewString()+"/metrics", body)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", w.Code)
		}
	})
}

func TestListAgentMetrics(t *testing.T) {
	orgID := uuid.New()
	store := newMockAgentStore()
	agent := models.NewAgent(orgID, "web-01", "linux")
	store.agents[agent.ID] = agent
	r := setupAgentTestRouter(store, orgID)

	postJSON(r, "/api/v1/agents/"+agent.ID.String()+"/metrics",
		`{"metricType":"system","metricData":{"cpu_percent":40}}`)
	postJSON(r, "/api/v1/agents/"+agent.ID.String()+"/metrics",
		`{"metricType":"heartbeat","metricData":{}}`)

	getMetrics := func(t *testing.T, query string) ([]*models.AgentMetric, int) {
		t.Helper()
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/agents/"+agent.ID.String()+"/metrics"+query, nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			return nil, w.Code
		}
		var resp struct {
			Metrics []*models.AgentMetric `json:"metrics"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		return resp.Metrics, w.Code
	}

	t.Run("all reports", func(t *testing.T) {
		reports, code := getMetrics(t, "")
		if code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", code)
		}
		if len(reports) != 2 {
			t.Fatalf("expected 2 reports, got %d", len(reports))
		}
	})

	t.Run("type filter", func(t *testing.T) {
		reports, code := getMetrics(t, "?type=system")
		if code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", code)
		}
		if len(reports) != 1 || reports[0].MetricType != models.MetricTypeSystem {
			t.Fatalf("expected 1 system report, got %d", len(reports))
		}
	})

	t.Run("unknown type filter", func(t *testing.T) {
		_, code := getMetrics(t, "?type=bogus")
		if code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", code)
		}
	})

	t.Run("foreign agent", func(t *testing.T) {
		w := httptest.NewRecorder()
		foreign := models.NewAgent(uuid.New(), "foreign-host", "linux")
		store.agents[foreign.ID] = foreign
		req, _ := http.NewRequest("GET", "/api/v1/agents/"+foreign.ID.String()+"/metrics", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected status 404 for foreign agent, got %d", w.Code)
		}
	})
}

func TestResolveAlert(t *testing.T) {
	orgID := uuid.New()
	store := newMockAgentStore()
	agent := models.NewAgent(orgID, "web-01", "linux")
	store.agents[agent.ID] = agent
	alert := models.NewAgentAlert(agent.ID, orgID, models.AlertTypeHighCPU, models.AlertSeverityCritical, "CPU usage at 95.0%")
	store.alerts = append(store.alerts, alert)
	r := setupAgentTestRouter(store, orgID)

	t.Run("resolve", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("PUT", "/api/v1/agents/"+agent.ID.String()+"/alerts/"+alert.ID.String()+"/resolve", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		if !alert.IsResolved {
			t.Fatal("expected alert to be resolved")
		}
	})

	t.Run("unknown alert", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("PUT", "/api/v1/agents/"+agent.ID.String()+"/alerts/"+uuid.NewString()+"/resolve", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", w.Code)
		}
	})

	t.Run("unresolved filter hides resolved alerts", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/agents/"+agent.ID.String()+"/alerts?unresolved=true", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}

		var resp struct {
			Alerts []*models.AgentAlert `json:"alerts"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if len(resp.Alerts) != 0 {
			t.Fatalf("expected 0 unresolved alerts, got %d", len(resp.Alerts))
		}
	})
}
