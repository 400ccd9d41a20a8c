// Package loader reads the tracked-strategy list that the state
// synchronizer reconciles against the bridge.
package loader

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TrackedStrategy names one strategy the synchronizer follows, with
// optional per-strategy tolerance overrides (zero means inherit the
// global value).
type TrackedStrategy struct {
	ID                  string  `yaml:"id"`
	PnLTolerance        float64 `yaml:"pnl_tolerance"`
	TradeCountTolerance int     `yaml:"trade_count_tolerance"`
}

type strategiesFile struct {
	Strategies []TrackedStrategy `yaml:"strategies"`
}

func LoadStrategies(path string) ([]TrackedStrategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading strategies file failed: %w", err)
	}
	var file strategiesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing strategies file failed: %w", err)
	}
	out := make([]TrackedStrategy, 0, len(file.Strategies))
	seen := make(map[string]bool, len(file.Strategies))
	for _, s := range file.Strategies {
		s.ID = strings.TrimSpace(s.ID)
		if s.ID == "" || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("strategies file %s lists no strategies", path)
	}
	return out, nil
}
