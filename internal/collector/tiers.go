package collector

import (
	"github.com/dreyes86/poolwatch/internal/antpool"
)

// Selection is a tier's account-selection policy.
type Selection int

const (
	// SelectAllActive targets every active configured account.
	SelectAllActive Selection = iota
	// SelectFlagged targets only accounts with unresolved alerts.
	SelectFlagged
)

// Tier bundles a polling cadence with an endpoint set, a selection
// policy and an advisory call budget. Tiers are configuration, not
// state; every tier shares the one rate governor, and the per-tier
// budget is a planning number, not a hard reservation.
type Tier struct {
	Name       string
	Endpoints  []antpool.Endpoint
	Selection  Selection
	CallBudget int

	// Paginated is set on tiers whose worker-list endpoint must walk
	// every page. Each page is its own governed call and capture.
	Paginated bool
}

var (
	// TierEssentials runs every 10 minutes: balance and hashrate for
	// every account. Roughly 2 calls per account.
	TierEssentials = Tier{
		Name:       "essentials",
		Endpoints:  []antpool.Endpoint{antpool.EndpointAccount, antpool.EndpointHashrate},
		Selection:  SelectAllActive,
		CallBudget: 120,
	}

	// TierOverview runs hourly: account overview plus a first-page
	// worker summary for every account.
	TierOverview = Tier{
		Name:       "overview",
		Endpoints:  []antpool.Endpoint{antpool.EndpointOverview, antpool.EndpointWorkers},
		Selection:  SelectAllActive,
		CallBudget: 120,
	}

	// TierDeepAnalysis walks the full worker list, every page, but only
	// for accounts the problem detector has flagged.
	TierDeepAnalysis = Tier{
		Name:       "deep-worker-analysis",
		Endpoints:  []antpool.Endpoint{antpool.EndpointWorkers},
		Selection:  SelectFlagged,
		CallBudget: 240,
		Paginated:  true,
	}

	// TierMaintenance runs daily: payment history and pool statistics,
	// followed by the retention pass.
	TierMaintenance = Tier{
		Name:       "maintenance",
		Endpoints:  []antpool.Endpoint{antpool.EndpointPayments, antpool.EndpointPoolStats},
		Selection:  SelectAllActive,
		CallBudget: 120,
	}
)

// TierByName resolves a CLI tier argument.
func TierByName(name string) (Tier, bool) {
	switch name {
	case TierEssentials.Name, "tier1":
		return TierEssentials, true
	case TierOverview.Name, "tier2":
		return TierOverview, true
	case TierDeepAnalysis.Name, "deep", "tier3":
		return TierDeepAnalysis, true
	case TierMaintenance.Name, "tier4":
		return TierMaintenance, true
	}
	return Tier{}, false
}
