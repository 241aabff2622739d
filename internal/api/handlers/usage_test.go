package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iteksmart/warden/internal/api/middleware"
	"github.com/iteksmart/warden/internal/license"
	"github.com/iteksmart/warden/internal/metering"
	"github.com/iteksmart/warden/internal/models"
)

// mockUsageStore implements the meter's store.
type mockUsageStore struct {
	licenses map[uuid.UUID]*models.License
	byKey    map[string]*models.License
	records  []*models.UsageRecord
}

func newMockUsageStore() *mockUsageStore {
	return &mockUsageStore{
		licenses: make(map[uuid.UUID]*models.License),
		byKey:    make(map[string]*models.License),
	}
}

func (m *mockUsageStore) add(lic *models.License) {
	m.licenses[lic.ID] = lic
	m.byKey[lic.Key] = lic
}

func (m *mockUsageStore) GetLicenseByKey(_ context.Context, key string) (*models.License, error) {
	return m.byKey[key], nil
}

func (m *mockUsageStore) GetLicenseByID(_ context.Context, id uuid.UUID) (*models.License, error) {
	return m.licenses[id], nil
}

func (m *mockUsageStore) CreateUsageRecord(_ context.Context, r *models.UsageRecord) error {
	m.records = append(m.records, r)
	return nil
}

func (m *mockUsageStore) SummarizeUsage(_ context.Context, licenseID uuid.UUID, since time.Time) ([]models.UsageSummaryItem, error) {
	totals := make(map[[2]string]int64)
	for _, r := range m.records {
		if r.LicenseID != licenseID || r.RecordedAt.Before(since) {
			continue
		}
		totals[[2]string{r.ProductID, r.Action}] += r.Quantity
	}
	var items []models.UsageSummaryItem
	for key, total := range totals {
		items = append(items, models.UsageSummaryItem{ProductID: key[0], Action: key[1], Total: total})
	}
	return items, nil
}

func setupUsageTestRouter(store *mockUsageStore, orgID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeyOrgID, orgID)
		c.Next()
	})

	meter := metering.NewMeter(store, zerolog.Nop())
	handler := NewUsageHandler(meter, testCollector(), zerolog.Nop())

	api := r.Group("/api/v1")
	api.POST("/usage/record", handler.Record)
	api.GET("/usage/summary", handler.Summary)
	return r
}

func TestRecordUsage(t *testing.T) {
	orgID := uuid.New()

	seed := func() (*mockUsageStore, *models.License) {
		store := newMockUsageStore()
		key, _ := license.GenerateKey()
		lic := models.NewLicense(orgID, key, models.TierStarter)
		store.add(lic)
		return store, lic
	}

	t.Run("default quantity", func(t *testing.T) {
		store, lic := seed()
		r := setupUsageTestRouter(store, orgID)

		body := `{"licenseKey":"` + lic.Key + `","productId":"analytics","action":"api_call"}`
		w := postJSON(r, "/api/v1/usage/record", body)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
		}

		var rec models.UsageRecord
		if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if rec.Quantity != 1 {
			t.Fatalf("expected default quantity 1, got %d", rec.Quantity)
		}
	})

	t.Run("foreign license is not found", func(t *testing.T) {
		store, _ := seed()
		foreignKey, _ := license.GenerateKey()
		foreign := models.NewLicense(uuid.New(), foreignKey, models.TierStarter)
		store.add(foreign)
		r := setupUsageTestRouter(store, orgID)

		body := `{"licenseKey":"` + foreign.Key + `","productId":"analytics","action":"api_call"}`
		w := postJSON(r, "/api/v1/usage/record", body)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", w.Code)
		}
	})
}

func TestUsageSummary(t *testing.T) {
	orgID := uuid.New()
	store := newMockUsageStore()
	key, _ := license.GenerateKey()
	lic := models.NewLicense(orgID, key, models.TierStarter)
	store.add(lic)
	r := setupUsageTestRouter(store, orgID)

	for i := 0; i < 3; i++ {
		body := `{"licenseKey":"` + lic.Key + `","productId":"analytics","action":"api_call"}`
		postJSON(r, "/api/v1/usage/record", body)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/usage/summary?licenseId="+lic.ID.String()+"&period=day", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var summary models.UsageSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if summary.Total != 3 {
		t.Fatalf("expected total 3, got %d", summary.Total)
	}
	if summary.Period != models.UsagePeriodDay {
		t.Fatalf("expected day period, got %s", summary.Period)
	}
}
