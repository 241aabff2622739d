package license

import "github.com/iteksmart/warden/internal/models"

// Entitlements is the quota and feature set resolved for a tier. It is
// snapshotted onto the license row at creation and never re-derived.
type Entitlements struct {
	MaxUsers        int
	MaxProducts     int
	MaxAPICalls     int
	MaxStorageBytes int64
	Features        models.Features
}

const gib = int64(1024 * 1024 * 1024)

var tierDefaults = map[models.LicenseTier]Entitlements{
	models.TierTrial: {
		MaxUsers:        5,
		MaxProducts:     3,
		MaxAPICalls:     1000,
		MaxStorageBytes: 10 * gib,
		Features:        models.Features{DemoWatermark: true},
	},
	models.TierStarter: {
		MaxUsers:        25,
		MaxProducts:     5,
		MaxAPICalls:     10000,
		MaxStorageBytes: 100 * gib,
		Features:        models.Features{EmailSupport: true},
	},
	models.TierProfessional: {
		MaxUsers:        100,
		MaxProducts:     15,
		MaxAPICalls:     50000,
		MaxStorageBytes: 500 * gib,
		Features:        models.Features{PrioritySupport: true, CustomBranding: true},
	},
	models.TierEnterprise: {
		MaxUsers:        1000,
		MaxProducts:     35,
		MaxAPICalls:     1000000,
		MaxStorageBytes: 2048 * gib,
		Features:        models.Features{DedicatedSupport: true, CustomBranding: true, SLA: true, AuditLogs: true},
	},
	models.TierUnlimited: {
		MaxUsers:        999999,
		MaxProducts:     35,
		MaxAPICalls:     999999999,
		MaxStorageBytes: 10240 * gib,
		Features: models.Features{
			WhiteLabel:         true,
			CustomIntegrations: true,
			DedicatedSupport:   true,
			SLA:                true,
			AuditLogs:          true,
			CustomDevelopment:  true,
		},
	},
}

// DefaultsFor resolves the entitlement snapshot for a tier. The returned
// value is a copy; mutating it does not affect future resolutions. Unknown
// tiers return false, callers reject those at the administrative boundary.
func DefaultsFor(tier models.LicenseTier) (Entitlements, bool) {
	ent, ok := tierDefaults[tier]
	if !ok {
		return Entitlements{}, false
	}
	if ent.Features.Extra != nil {
		extra := make(map[string]bool, len(ent.Features.Extra))
		for k, v := range ent.Features.Extra {
			extra[k] = v
		}
		ent.Features.Extra = extra
	}
	return ent, true
}

// ProductAllowed reports whether a tier grants access to the product without
// consulting the explicit allow list. ENTERPRISE and UNLIMITED cover all
// products.
func ProductAllowed(lic *models.License, productID string) bool {
	switch lic.Tier {
	case models.TierEnterprise, models.TierUnlimited:
		return true
	}
	for _, p := range lic.AllowedProducts {
		if p == productID {
			return true
		}
	}
	return false
}
