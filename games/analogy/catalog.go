/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package analogy

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/strategic-pairs.json
var defaultCatalog []byte

const stratifiedLevels = 4

// CompanyPair is one voting item. Pairs are immutable once a session has
// selected them.
type CompanyPair struct {
	CompanyA          string `json:"companyA" yaml:"companyA"`
	CompanyB          string `json:"companyB" yaml:"companyB"`
	StrategicContrast string `json:"strategic_contrast" yaml:"strategic_contrast"`
	DilemmaQuestion   string `json:"dilemma_question,omitempty" yaml:"dilemma_question"`
	Level             int    `json:"niveau,omitempty" yaml:"niveau"`
	Dimension         int    `json:"dimensie_nummer,omitempty" yaml:"dimensie_nummer"`
}

// level treats untagged pairs as level 1.
func (p CompanyPair) level() int {
	if p.Level <= 0 {
		return 1
	}

	return p.Level
}

type catalogDocument struct {
	StrategicPairs []CompanyPair `json:"strategic_pairs" yaml:"strategic_pairs"`
}

// DefaultCatalog returns the embedded pair catalog.
func DefaultCatalog() ([]CompanyPair, error) {
	return ParseCatalog(defaultCatalog, ".json")
}

// LoadCatalog reads a JSON or YAML catalog, chosen by file extension.
func LoadCatalog(path string) ([]CompanyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	pairs, err := ParseCatalog(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	return pairs, nil
}

// ParseCatalog accepts either a bare list of pairs or a document with a
// strategic_pairs list.
func ParseCatalog(data []byte, ext string) ([]CompanyPair, error) {
	var (
		pairs []CompanyPair
		doc   catalogDocument
	)

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &pairs); err != nil {
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return nil, err
			}
			pairs = doc.StrategicPairs
		}
	default:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &pairs); err != nil {
				return nil, err
			}
		} else {
			if err := json.Unmarshal(trimmed, &doc); err != nil {
				return nil, err
			}
			pairs = doc.StrategicPairs
		}
	}

	if len(pairs) == 0 {
		return nil, errors.New("catalog contains no pairs")
	}

	for i, p := range pairs {
		if p.CompanyA == "" || p.CompanyB == "" {
			return nil, fmt.Errorf("pair %d is missing a company name", i)
		}
	}

	return pairs, nil
}

// SelectPairs draws n pairs for a session: one from each of the first four
// distinct levels in catalog order, the rest uniformly from what remains,
// then the whole selection shuffled.
func SelectPairs(pairs []CompanyPair, n int, rng *rand.Rand) []CompanyPair {
	if n <= 0 || len(pairs) == 0 {
		return []CompanyPair{}
	}

	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	if n >= len(pairs) {
		out := append([]CompanyPair(nil), pairs...)
		rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })

		return out
	}

	byLevel := make(map[int][]int)
	var levels []int
	for i, p := range pairs {
		lvl := p.level()
		if _, seen := byLevel[lvl]; !seen {
			levels = append(levels, lvl)
		}
		byLevel[lvl] = append(byLevel[lvl], i)
	}

	taken := make(map[int]bool, n)
	selected := make([]CompanyPair, 0, n)

	for _, lvl := range levels[:min(len(levels), stratifiedLevels)] {
		if len(selected) == n {
			break
		}

		candidates := byLevel[lvl]
		pick := candidates[rng.IntN(len(candidates))]
		taken[pick] = true
		selected = append(selected, pairs[pick])
	}

	rest := make([]int, 0, len(pairs)-len(taken))
	for i := range pairs {
		if !taken[i] {
			rest = append(rest, i)
		}
	}
	rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })

	for _, i := range rest[:n-len(selected)] {
		selected = append(selected, pairs[i])
	}

	rng.Shuffle(len(selected), func(i, j int) { selected[i], selected[j] = selected[j], selected[i] })

	return selected
}
