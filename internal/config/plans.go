package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PlanSpec describes one purchasable tier. Amount is in major currency units.
type PlanSpec struct {
	Name           string   `yaml:"name" json:"name"`
	Amount         int64    `yaml:"amount" json:"amount"`
	Currency       string   `yaml:"currency" json:"currency"`
	RazorpayPlanID string   `yaml:"razorpayPlanID" json:"razorpay_plan_id,omitempty"`
	Unlimited      bool     `yaml:"unlimited" json:"unlimited"`
	Features       []string `yaml:"features" json:"features"`
}

type PlanCatalog struct {
	CheckoutName string     `yaml:"checkoutName"`
	ThemeColor   string     `yaml:"themeColor"`
	Plans        []PlanSpec `yaml:"plans"`
}

// Find looks a plan up by name, case-insensitively.
func (c PlanCatalog) Find(name string) (PlanSpec, bool) {
	name = strings.TrimSpace(name)
	for _, p := range c.Plans {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return PlanSpec{}, false
}

// Unlimited reports whether the named plan has no generation quota. Plans
// missing from the catalogue are metered.
func (c PlanCatalog) Unlimited(name string) bool {
	p, ok := c.Find(name)
	return ok && p.Unlimited
}

func DefaultPlanCatalog() PlanCatalog {
	return PlanCatalog{
		CheckoutName: "Study App",
		ThemeColor:   "#6366f1",
		Plans: []PlanSpec{
			{
				Name:     "Free",
				Amount:   0,
				Currency: "INR",
				Features: []string{"3 generations", "Flashcards & MCQs", "Limited media support"},
			},
			{
				Name:      "Pro",
				Amount:    1500,
				Currency:  "INR",
				Unlimited: true,
				Features:  []string{"Unlimited generations", "Advanced flashcards & MCQs", "File & media upload", "Priority support"},
			},
			{
				Name:      "Premium",
				Amount:    4000,
				Currency:  "INR",
				Unlimited: true,
				Features:  []string{"All Pro features", "Export to PDF/CSV", "Early access to new features", "Dedicated support"},
			},
		},
	}
}

// LoadPlans reads the plan catalogue. A missing file yields the defaults.
func LoadPlans(path string) (PlanCatalog, error) {
	if path == "" {
		return DefaultPlanCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultPlanCatalog(), nil
	}
	if err != nil {
		return PlanCatalog{}, fmt.Errorf("read plans: %w", err)
	}
	return ParsePlans(data)
}

func ParsePlans(data []byte) (PlanCatalog, error) {
	var cat PlanCatalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return PlanCatalog{}, fmt.Errorf("parse plans: %w", err)
	}
	if err := validatePlans(cat); err != nil {
		return PlanCatalog{}, err
	}
	if cat.CheckoutName == "" {
		cat.CheckoutName = "Study App"
	}
	for i := range cat.Plans {
		if cat.Plans[i].Currency == "" {
			cat.Plans[i].Currency = "INR"
		}
	}
	return cat, nil
}

func validatePlans(cat PlanCatalog) error {
	if len(cat.Plans) == 0 {
		return errors.New("plans: at least one plan is required")
	}
	seen := make(map[string]bool, len(cat.Plans))
	for _, p := range cat.Plans {
		key := strings.ToLower(strings.TrimSpace(p.Name))
		if key == "" {
			return errors.New("plans: plan name is required")
		}
		if seen[key] {
			return fmt.Errorf("plans: duplicate plan %q", p.Name)
		}
		if p.Amount < 0 {
			return fmt.Errorf("plans: negative amount for %q", p.Name)
		}
		seen[key] = true
	}
	return nil
}
