package services

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"uangku/internal/core"
)

// budgetEntry is the on-disk shape of a budget. Limits are strings so that
// large amounts never pass through a float.
type budgetEntry struct {
	ID         string `yaml:"id"`
	Period     string `yaml:"period"`
	Limit      string `yaml:"limit"`
	CategoryID string `yaml:"category_id"`
	UserID     string `yaml:"user_id"`
}

type budgetsFile struct {
	Budgets []budgetEntry `yaml:"budgets"`
}

// LoadBudgets reads budgets from a YAML file. An empty path yields none.
//
//	budgets:
//	  - id: groceries-june
//	    period: "2025-06"
//	    limit: "2000000"
//	    category_id: groceries
//	    user_id: alice
func LoadBudgets(path string) ([]core.Budget, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read budgets file: %w", err)
	}
	return ParseBudgets(data)
}

// ParseBudgets decodes budgets YAML and validates every entry. All invalid
// entries are reported together.
func ParseBudgets(data []byte) ([]core.Budget, error) {
	var file budgetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse budgets YAML: %w", err)
	}

	var (
		budgets = make([]core.Budget, 0, len(file.Budgets))
		seen    = make(map[string]bool)
		errs    []error
	)
	for i, e := range file.Budgets {
		limit, err := core.ParseAmount(e.Limit)
		if err != nil {
			errs = append(errs, fmt.Errorf("budget %d (%s): %w", i, e.ID, err))
			continue
		}
		b := core.Budget{
			ID:         e.ID,
			Period:     e.Period,
			Limit:      limit,
			CategoryID: e.CategoryID,
			UserID:     e.UserID,
		}
		if err := b.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("budget %d (%s): %w", i, e.ID, err))
			continue
		}
		key := b.UserID + "|" + b.ID
		if seen[key] {
			errs = append(errs, fmt.Errorf("budget %d (%s): %w", i, e.ID, ErrDuplicateBudget))
			continue
		}
		seen[key] = true
		budgets = append(budgets, b)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return budgets, nil
}
