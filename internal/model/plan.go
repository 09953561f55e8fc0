package model

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

// Plan describes one subscription tier. Credits of -1 means unmetered.
type Plan struct {
	Name     string   `yaml:"name" json:"name"`
	Credits  int      `yaml:"credits" json:"credits"`
	PriceTHB int      `yaml:"price_thb" json:"price_thb"`
	Features []string `yaml:"features" json:"features"`
}

//go:embed plans.yaml
var plansYAML []byte

// planCatalog is loaded once at init from the embedded catalog.
var planCatalog map[string]Plan

func init() {
	if err := yaml.Unmarshal(plansYAML, &planCatalog); err != nil {
		panic("model: invalid embedded plan catalog: " + err.Error())
	}
}

// PlanByID returns the plan for id, falling back to the free tier for
// unknown or empty ids (a user whose subscription row never synced).
func PlanByID(id string) Plan {
	if p, ok := planCatalog[id]; ok {
		return p
	}
	return planCatalog["free"]
}

// PlanUnlimited reports whether the plan is exempt from credit metering.
func PlanUnlimited(id string) bool {
	p, ok := planCatalog[id]
	return ok && p.Credits == CreditsUnlimited
}

// PlanCredits returns the monthly credit allowance for a plan id.
func PlanCredits(id string) int {
	return PlanByID(id).Credits
}

// Plans returns the full catalog keyed by plan id.
func Plans() map[string]Plan {
	out := make(map[string]Plan, len(planCatalog))
	for k, v := range planCatalog {
		out[k] = v
	}
	return out
}
