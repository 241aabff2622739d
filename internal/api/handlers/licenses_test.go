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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/iteksmart/warden/internal/license"
	"github.com/iteksmart/warden/internal/metrics"
	"github.com/iteksmart/warden/internal/models"
)

// mockLicenseStore implements LicensesStore and the validator's store.
type mockLicenseStore struct {
	orgs        map[uuid.UUID]*models.Organization
	licenses    map[uuid.UUID]*models.License
	byKey       map[string]*models.License
	validations []*models.LicenseValidation
	usage       []*models.UsageRecord
	createErr   error
}

func newMockLicenseStore() *mockLicenseStore {
	return &mockLicenseStore{
		orgs:     make(map[uuid.UUID]*models.Organization),
		licenses: make(map[uuid.UUID]*models.License),
		byKey:    make(map[string]*models.License),
	}
}

func (m *mockLicenseStore) addLicense(lic *models.License) {
	m.licenses[lic.ID] = lic
	m.byKey[lic.Key] = lic
}

func (m *mockLicenseStore) GetOrganization(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	return m.orgs[id], nil
}

func (m *mockLicenseStore) CreateLicense(_ context.Context, lic *models.License) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.addLicense(lic)
	return nil
}

func (m *mockLicenseStore) GetLicenseByID(_ context.Context, id uuid.UUID) (*models.License, error) {
	return m.licenses[id], nil
}

func (m *mockLicenseStore) GetLicenseByKey(_ context.Context, key string) (*models.License, error) {
	return m.byKey[key], nil
}

func (m *mockLicenseStore) ListLicenses(_ context.Context, orgID uuid.UUID) ([]*models.License, error) {
	var out []*models.License
	for _, lic := range m.licenses {
		if orgID == uuid.Nil || lic.OrgID == orgID {
			out = append(out, lic)
		}
	}
	return out, nil
}

func (m *mockLicenseStore) UpdateLicenseStatus(_ context.Context, id uuid.UUID, status models.LicenseStatus) error {
	if lic, ok := m.licenses[id]; ok {
		lic.Status = status
	}
	return nil
}

func (m *mockLicenseStore) BindMachine(_ context.Context, licenseID uuid.UUID, machineHash string, maxMachines int) (bool, error) {
	lic, ok := m.licenses[licenseID]
	if !ok {
		return false, nil
	}
	if lic.HasMachine(machineHash) {
		return true, nil
	}
	if len(lic.MachineIDs) >= maxMachines {
		return false, nil
	}
	lic.MachineIDs = append(lic.MachineIDs, machineHash)
	return true, nil
}

func (m *mockLicenseStore) TouchLicenseValidated(_ context.Context, id uuid.UUID, at time.Time) error {
	if lic, ok := m.licenses[id]; ok {
		lic.LastValidated = &at
	}
	return nil
}

func (m *mockLicenseStore) CreateValidation(_ context.Context, v *models.LicenseValidation) error {
	m.validations = append(m.validations, v)
	return nil
}

func (m *mockLicenseStore) CreateUsageRecord(_ context.Context, r *models.UsageRecord) error {
	m.usage = append(m.usage, r)
	return nil
}

func (m *mockLicenseStore) ListValidations(_ context.Context, licenseID uuid.UUID, limit int) ([]*models.LicenseValidation, error) {
	var out []*models.LicenseValidation
	for _, v := range m.validations {
		if v.LicenseID == licenseID {
			out = append(out, v)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func testCollector() *metrics.Collector {
	return metrics.NewCollector(prometheus.NewRegistry())
}

func setupLicenseTestRouter(store *mockLicenseStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	validator := license.NewValidator(store, zerolog.Nop())
	handler := NewLicensesHandler(store, validator, testCollector(), zerolog.Nop())

	api := r.Group("/api/v1")
	api.POST("/licenses/validate", handler.Validate)
	api.POST("/licenses/create", handler.Create)
	api.GET("/licenses", handler.List)
	api.GET("/licenses/:id", handler.Get)
	api.PATCH("/licenses/:id/status", handler.UpdateStatus)
	api.GET("/licenses/:id/validations", handler.ListValidations)
	return r
}

func activeLicense(orgID uuid.UUID) *models.License {
	key, _ := license.GenerateKey()
	lic := models.NewLicense(orgID, key, models.TierProfessional)
	ent, _ := license.DefaultsFor(models.TierProfessional)
	lic.MaxUsers = ent.MaxUsers
	lic.MaxProducts = ent.MaxProducts
	lic.Features = ent.Features
	return lic
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestValidateLicense(t *testing.T) {
	orgID := uuid.New()

	t.Run("valid license", func(t *testing.T) {
		store := newMockLicenseStore()
		lic := activeLicense(orgID)
		store.addLicense(lic)
		r := setupLicenseTestRouter(store)

		w := postJSON(r, "/api/v1/licenses/validate", `{"licenseKey":"`+lic.Key+`"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var resp license.Result
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if !resp.Valid {
			t.Fatalf("expected valid result, got reason %q", resp.Reason)
		}
		if resp.License == nil {
			t.Fatal("expected license snapshot in response")
		}
		if len(store.validations) != 1 {
			t.Fatalf("expected 1 audit row, got %d", len(store.validations))
		}
	})

	t.Run("unknown key is 200 with reason", func(t *testing.T) {
		store := newMockLicenseStore()
		r := setupLicenseTestRouter(store)

		w := postJSON(r, "/api/v1/licenses/validate", `{"licenseKey":"AAAA-BBBB-CCCC-DDDD-EEEE"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}

		var resp license.Result
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if resp.Valid {
			t.Fatal("expected invalid result")
		}
		if resp.Reason != "unknown key" {
			t.Fatalf("expected reason 'unknown key', got %q", resp.Reason)
		}
	})

	t.Run("suspended license is 200 with reason", func(t *testing.T) {
		store := newMockLicenseStore()
		lic := activeLicense(orgID)
		lic.Status = models.LicenseStatusSuspended
		store.addLicense(lic)
		r := setupLicenseTestRouter(store)

		w := postJSON(r, "/api/v1/licenses/validate", `{"licenseKey":"`+lic.Key+`"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}

		var resp license.Result
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if resp.Valid || resp.Reason != "license is suspended" {
			t.Fatalf("expected 'license is suspended', got valid=%v reason=%q", resp.Valid, resp.Reason)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		store := newMockLicenseStore()
		r := setupLicenseTestRouter(store)

		w := postJSON(r, "/api/v1/licenses/validate", `{}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", w.Code)
		}
	})
}

func TestCreateLicense(t *testing.T) {
	org := models.NewOrganization("Acme", "acme.example.com")

	t.Run("enterprise defaults", func(t *testing.T) {
		store := newMockLicenseStore()
		store.orgs[org.ID] = org
		r := setupLicenseTestRouter(store)

		body := `{"organizationId":"` + org.ID.String() + `","tier":"ENTERPRISE"}`
		w := postJSON(r, "/api/v1/licenses/create", body)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
		}

		var resp struct {
			License    models.LicenseSummary `json:"license"`
			LicenseKey string                `json:"licenseKey"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if resp.License.MaxUsers != 1000 {
			t.Fatalf("expected 1000 max users, got %d", resp.License.MaxUsers)
		}
		if !license.IsWellFormedKey(resp.LicenseKey) {
			t.Fatalf("expected well-formed license key, got %q", resp.LicenseKey)
		}
	})

	t.Run("trial tier starts trial window", func(t *testing.T) {
		store := newMockLicenseStore()
		store.orgs[org.ID] = org
		r := setupLicenseTestRouter(store)

		body := `{"organizationId":"` + org.ID.String() + `","tier":"TRIAL"}`
		w := postJSON(r, "/api/v1/licenses/create", body)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
		}

		var resp struct {
			License models.LicenseSummary `json:"license"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if !resp.License.IsTrial {
			t.Fatal("expected trial license")
		}
	})

	t.Run("override max users", func(t *testing.T) {
		store := newMockLicenseStore()
		store.orgs[org.ID] = org
		r := setupLicenseTestRouter(store)

		body := `{"organizationId":"` + org.ID.String() + `","tier":"STARTER","maxUsers":7}`
		w := postJSON(r, "/api/v1/licenses/create", body)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
		}

		var resp struct {
			License models.LicenseSummary `json:"license"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if resp.License.MaxUsers != 7 {
			t.Fatalf("expected 7 max users, got %d", resp.License.MaxUsers)
		}
	})

	t.Run("unknown organization", func(t *testing.T) {
		store := newMockLicenseStore()
		r := setupLicenseTestRouter(store)

		body := `{"organizationId":"` + uuid.NewString() + `","tier":"STARTER"}`
		w := postJSON(r, "/api/v1/licenses/create", body)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", w.Code)
		}
	})

	t.Run("invalid tier", func(t *testing.T) {
		store := newMockLicenseStore()
		store.orgs[org.ID] = org
		r := setupLicenseTestRouter(store)

		body := `{"organizationId":"` + org.ID.String() + `","tier":"PLATINUM"}`
		w := postJSON(r, "/api/v1/licenses/create", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", w.Code)
		}
	})
}

func TestUpdateLicenseStatus(t *testing.T) {
	orgID := uuid.New()

	t.Run("suspend", func(t *testing.T) {
		store := newMockLicenseStore()
		lic := activeLicense(orgID)
		store.addLicense(lic)
		r := setupLicenseTestRouter(store)

		w := httptest.NewRecorder()
		body := `{"status":"SUSPENDED"}`
		req, _ := http.NewRequest("PATCH", "/api/v1/licenses/"+lic.ID.String()+"/status", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		if lic.Status != models.LicenseStatusSuspended {
			t.Fatalf("expected SUSPENDED, got %s", lic.Status)
		}
	})

	t.Run("unknown license", func(t *testing.T) {
		store := newMockLicenseStore()
		r := setupLicenseTestRouter(store)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("PATCH", "/api/v1/licenses/"+uuid.NewString()+"/status", strings.NewReader(`{"status":"ACTIVE"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", w.Code)
		}
	})
}

func TestListValidations(t *testing.T) {
	orgID := uuid.New()
	store := newMockLicenseStore()
	lic := activeLicense(orgID)
	store.addLicense(lic)
	r := setupLicenseTestRouter(store)

	// Two attempts, one valid and one with a bad machine-less product check.
	postJSON(r, "/api/v1/licenses/validate", `{"licenseKey":"`+lic.Key+`"}`)
	postJSON(r, "/api/v1/licenses/validate", `{"licenseKey":"`+lic.Key+`","productId":"nope"}`)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/licenses/"+lic.ID.String()+"/validations", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Validations []*models.LicenseValidation `json:"validations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Validations) != 2 {
		t.Fatalf("expected 2 validations, got %d", len(resp.Validations))
	}
}
