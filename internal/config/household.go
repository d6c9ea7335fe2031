package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"bilancio/internal/core"
)

// HouseholdFile is the on-disk household definition: the two members, their
// monthly incomes, and the default split policy for new items.
type HouseholdFile struct {
	Members      [2]MemberConfig `toml:"members"`
	DefaultSplit string          `toml:"default_split"`
}

// MemberConfig describes one household member.
type MemberConfig struct {
	Name          string  `toml:"name"`
	MonthlyIncome float64 `toml:"monthly_income"` // euros
}

// DefaultHousehold returns a placeholder two-member household.
func DefaultHousehold() HouseholdFile {
	return HouseholdFile{
		Members: [2]MemberConfig{
			{Name: "Member 1"},
			{Name: "Member 2"},
		},
		DefaultSplit: string(core.SplitEqual),
	}
}

// LoadHousehold reads the household TOML file, returning defaults if it does
// not exist.
func LoadHousehold(path string) (HouseholdFile, error) {
	hf := DefaultHousehold()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return hf, nil
		}
		return hf, fmt.Errorf("reading household file: %w", err)
	}

	if err := toml.Unmarshal(data, &hf); err != nil {
		return hf, fmt.Errorf("parsing household file: %w", err)
	}

	return hf, nil
}

// SaveHousehold writes the household definition to disk.
func SaveHousehold(path string, hf HouseholdFile) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating household dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating household file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(hf)
}

// Household converts the file representation to the domain type, incomes in
// cents.
func (hf HouseholdFile) Household() core.Household {
	var h core.Household
	for i, m := range hf.Members {
		h.Members[i] = core.Member{
			Name:        m.Name,
			IncomeCents: int64(m.MonthlyIncome*100 + 0.5),
		}
	}
	return h
}

// SplitMode returns the configured default split mode, falling back to equal
// for missing or unknown values.
func (hf HouseholdFile) SplitMode() core.SplitMode {
	mode := core.SplitMode(hf.DefaultSplit)
	if err := mode.Validate(); err != nil {
		return core.SplitEqual
	}
	return mode
}
