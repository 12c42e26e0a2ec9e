package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// legacySettings mirrors the flat settings.json layout used by older collectors
type legacySettings struct {
	PlatformMin  []int `json:"platformmin_rgb"`
	PlatformMax  []int `json:"platformmax_rgb"`
	CoinMin      []int `json:"coinmin_rgb"`
	CoinMax      []int `json:"coinmax_rgb"`
	PlayerMin    []int `json:"playermin_rgb"`
	PlayerMax    []int `json:"playermax_rgb"`
	PlayAgainMin []int `json:"playagain_min_rgb"`
	PlayAgainMax []int `json:"playagain_max_rgb"`
	ShopMin      []int `json:"shopbtn_min_rgb"`
	ShopMax      []int `json:"shopbtn_max_rgb"`
	ScaledX      int   `json:"scaledx"`
	ScaledY      int   `json:"scaledy"`
}

// LoadSettingsJSON loads the legacy settings.json format. Only colour ranges and
// the logical grid size are read; everything else keeps its default.
func LoadSettingsJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var s legacySettings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}

	config := NewDefaultConfig()

	pairs := []struct {
		name     string
		min, max []int
		dst      *ColorRange
	}{
		{"platform", s.PlatformMin, s.PlatformMax, &config.Colors.Platform},
		{"coin", s.CoinMin, s.CoinMax, &config.Colors.Coin},
		{"player", s.PlayerMin, s.PlayerMax, &config.Colors.Player},
		{"playagain", s.PlayAgainMin, s.PlayAgainMax, &config.Colors.PlayAgain},
		{"shop", s.ShopMin, s.ShopMax, &config.Colors.Shop},
	}
	for _, p := range pairs {
		if p.min == nil && p.max == nil {
			continue
		}
		r, err := rangeFromInts(p.name, p.min, p.max)
		if err != nil {
			return nil, err
		}
		*p.dst = r
	}

	if s.ScaledX > 0 {
		config.Grid.Columns = s.ScaledX
	}
	if s.ScaledY > 0 {
		config.Grid.Rows = s.ScaledY
	}

	return config, nil
}
