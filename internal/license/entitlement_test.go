package license

import (
	"testing"

	"github.com/iteksmart/warden/internal/models"
)

func TestDefaultsFor(t *testing.T) {
	tests := []struct {
		tier        models.LicenseTier
		maxUsers    int
		maxProducts int
		maxAPICalls int
	}{
		{models.TierTrial, 5, 3, 1000},
		{models.TierStarter, 25, 5, 10000},
		{models.TierProfessional, 100, 15, 50000},
		{models.TierEnterprise, 1000, 35, 1000000},
		{models.TierUnlimited, 999999, 35, 999999999},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			ent, ok := DefaultsFor(tt.tier)
			if !ok {
				t.Fatalf("DefaultsFor(%s) not found", tt.tier)
			}
			if ent.MaxUsers != tt.maxUsers {
				t.Errorf("MaxUsers = %d, want %d", ent.MaxUsers, tt.maxUsers)
			}
			if ent.MaxProducts != tt.maxProducts {
				t.Errorf("MaxProducts = %d, want %d", ent.MaxProducts, tt.maxProducts)
			}
			if ent.MaxAPICalls != tt.maxAPICalls {
				t.Errorf("MaxAPICalls = %d, want %d", ent.MaxAPICalls, tt.maxAPICalls)
			}
		})
	}

	t.Run("unknown tier", func(t *testing.T) {
		if _, ok := DefaultsFor(models.LicenseTier("PLATINUM")); ok {
			t.Error("DefaultsFor() accepted unknown tier")
		}
	})

	t.Run("tier features", func(t *testing.T) {
		trial, _ := DefaultsFor(models.TierTrial)
		if !trial.Features.DemoWatermark {
			t.Error("TRIAL missing demo watermark")
		}
		ent, _ := DefaultsFor(models.TierEnterprise)
		if !ent.Features.DedicatedSupport || !ent.Features.SLA || !ent.Features.AuditLogs {
			t.Error("ENTERPRISE missing expected features")
		}
		unl, _ := DefaultsFor(models.TierUnlimited)
		if !unl.Features.WhiteLabel || !unl.Features.CustomDevelopment {
			t.Error("UNLIMITED missing expected features")
		}
	})

	t.Run("returned snapshot is a copy", func(t *testing.T) {
		first, _ := DefaultsFor(models.TierStarter)
		first.MaxUsers = 1
		first.Features.EmailSupport = false

		second, _ := DefaultsFor(models.TierStarter)
		if second.MaxUsers != 25 {
			t.Errorf("MaxUsers = %d after caller mutation, want 25", second.MaxUsers)
		}
		if !second.Features.EmailSupport {
			t.Error("EmailSupport lost after caller mutation")
		}
	})
}

func TestProductAllowed(t *testing.T) {
	tests := []struct {
		name    string
		tier    models.LicenseTier
		allowed []string
		product string
		want    bool
	}{
		{"enterprise covers everything", models.TierEnterprise, nil, "anything", true},
		{"unlimited covers everything", models.TierUnlimited, nil, "anything", true},
		{"starter with product listed", models.TierStarter, []string{"crm", "billing"}, "crm", true},
		{"starter without product", models.TierStarter, []string{"crm"}, "billing", false},
		{"trial empty allow list", models.TierTrial, nil, "crm", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lic := &models.License{Tier: tt.tier, AllowedProducts: tt.allowed}
			if got := ProductAllowed(lic, tt.product); got != tt.want {
				t.Errorf("ProductAllowed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLicenseTierRank(t *testing.T) {
	if models.TierTrial.Rank() >= models.TierStarter.Rank() {
		t.Error("TRIAL should rank below STARTER")
	}
	if models.TierEnterprise.Rank() >= models.TierUnlimited.Rank() {
		t.Error("ENTERPRISE should rank below UNLIMITED")
	}
	if models.LicenseTier("BOGUS").Rank() != -1 {
		t.Error("unknown tier should rank -1")
	}
}
