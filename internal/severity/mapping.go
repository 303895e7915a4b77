package severity

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/medspa-portal/internal/model"
)

// Mapper applies per-finding severity mappings on top of a base Config.
type Mapper struct {
	cfg           Config
	defaultFactor float64
	byName        map[string]model.SeverityMapping
}

// NewMapper indexes mappings by case-folded finding name. Later duplicates
// win.
func NewMapper(cfg Config, defaultFactor float64, mappings []model.SeverityMapping) *Mapper {
	if !(defaultFactor > 0) {
		defaultFactor = 1
	}
	m := &Mapper{
		cfg:           cfg,
		defaultFactor: defaultFactor,
		byName:        make(map[string]model.SeverityMapping, len(mappings)),
	}
	for _, mp := range mappings {
		if k := foldKey(mp.Finding); k != "" {
			m.byName[k] = mp
		}
	}
	return m
}

// Config returns the base scaling configuration.
func (m *Mapper) Config() Config { return m.cfg }

// Lookup returns the mapping for a finding name.
func (m *Mapper) Lookup(name string) (model.SeverityMapping, bool) {
	mp, ok := m.byName[foldKey(name)]
	return mp, ok
}

// Apply fills DisplayScore and Level for one finding. A Level already set
// by the source is kept.
func (m *Mapper) Apply(f model.Finding) model.Finding {
	factor, typ := m.defaultFactor, m.cfg.Type
	if mp, ok := m.Lookup(f.Name); ok {
		if mp.ScalingFactor > 0 {
			factor = mp.ScalingFactor
		}
		if t, err := ParseType(mp.ScalingType); err == nil && mp.ScalingType != "" {
			typ = t
		}
	}
	f.DisplayScore = m.cfg.ScaleWith(f.Score, factor, typ)
	if f.Level == "" {
		f.Level = m.cfg.Level(f.DisplayScore)
	}
	return f
}

// ApplyAll scales every finding and orders them by display score, highest
// first. Equal scores keep their input order.
func (m *Mapper) ApplyAll(findings []model.Finding) []model.Finding {
	out := make([]model.Finding, len(findings))
	for i, f := range findings {
		out[i] = m.Apply(f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DisplayScore > out[j].DisplayScore
	})
	return out
}

func foldKey(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}
