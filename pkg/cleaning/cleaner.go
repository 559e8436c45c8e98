package cleaning

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/normalize"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/table"
)

// Prometheus metrics for the cleaning rules.
var (
	ruleAffectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brewery_clean_rule_affected_total",
		Help: "Cells or rows affected by each cleaning rule",
	}, []string{"rule"})

	nullStateRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brewery_clean_null_state_rows_total",
		Help: "Cleaned rows left out of partitioning because their state is null",
	})
)

// RuleStat is the affected count of one rule.
type RuleStat struct {
	Rule     string `json:"rule"`
	Affected int    `json:"affected"`
}

// Report is the audit trail of one cleaning pass.
type Report struct {
	RowsIn  int        `json:"rows_in"`
	RowsOut int        `json:"rows_out"`
	Rules   []RuleStat `json:"rules"`
}

// Affected returns the count reported by the named rule.
func (r Report) Affected(rule string) int {
	for _, s := range r.Rules {
		if s.Rule == rule {
			return s.Affected
		}
	}
	return 0
}

// Cleaner applies Rules to a table.
type Cleaner struct {
	rules  []Rule
	logger zerolog.Logger
}

// New returns a cleaner running the standard rule sequence.
func New(logger zerolog.Logger) *Cleaner {
	return &Cleaner{rules: Rules(), logger: logger}
}

// Apply runs every rule in order on t and reports what each one did.
func (c *Cleaner) Apply(t *table.Table) Report {
	rep := Report{RowsIn: t.Len()}
	for _, rule := range c.rules {
		n := rule.Apply(t)
		rep.Rules = append(rep.Rules, RuleStat{Rule: rule.Name, Affected: n})
		ruleAffectedTotal.WithLabelValues(rule.Name).Add(float64(n))

		c.logger.Info().
			Str("rule", rule.Name).
			Int("affected", n).
			Int("rows", t.Len()).
			Msg("Cleaning rule applied")
	}
	rep.RowsOut = t.Len()
	return rep
}

// Unit is the set of cleaned rows sharing one state slug.
type Unit struct {
	Slug  string
	State string
	Table table.Table
}

// Partition groups the rows of t by the slug of their state, preserving row
// order inside each unit. Units are sorted by slug. Distinct states that
// produce the same slug share a unit. Rows with a null state belong to no
// unit; their count is returned.
func (c *Cleaner) Partition(t *table.Table) ([]Unit, int) {
	ci := asText(t, ColState)
	if ci < 0 {
		c.logger.Warn().Int("rows", t.Len()).Msg("No state column, nothing to partition")
		nullStateRowsTotal.Add(float64(t.Len()))
		return nil, t.Len()
	}

	bySlug := make(map[string]*Unit)
	nullState := 0
	for _, r := range t.Rows {
		state, ok := r[ci].(string)
		if !ok {
			nullState++
			continue
		}
		slug := normalize.Slug(state)
		u, exists := bySlug[slug]
		if !exists {
			u = &Unit{Slug: slug, State: state, Table: table.Table{Schema: t.Schema}}
			bySlug[slug] = u
		} else if u.State != state {
			c.logger.Warn().
				Str("slug", slug).
				Str("state", state).
				Str("unit_state", u.State).
				Msg("States share a partition slug")
		}
		u.Table.Rows = append(u.Table.Rows, r)
	}

	units := make([]Unit, 0, len(bySlug))
	for _, u := range bySlug {
		units = append(units, *u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Slug < units[j].Slug })

	if nullState > 0 {
		nullStateRowsTotal.Add(float64(nullState))
		c.logger.Warn().Int("rows", nullState).Msg("Rows with null state were not partitioned")
	}
	return units, nullState
}
