// Package engine implements the pure computation core: it maps a validated
// compute request and a dataset version onto emission figures, citations, and
// a manifest. The engine holds no mutable state and is safe to invoke from
// any number of goroutines without coordination.
package engine

import (
	"math"
	"sort"
	"time"

	"github.com/emberline/flue/internal/domain/canonical"
	"github.com/emberline/flue/internal/domain/catalog"
	"github.com/emberline/flue/internal/domain/model"
)

// Derivation constants.
const (
	weeksPerYear        = 52
	defaultUncertainty  = 0.1
	defaultBackendLabel = "local"
)

// Result is the full outcome of one computation. Field tags mirror the wire
// schema for /api/compute responses.
type Result struct {
	DatasetID  string      `json:"dataset_id"`
	Manifest   Manifest    `json:"manifest"`
	Figures    Figures     `json:"figures"`
	References []Reference `json:"references"`
}

// Manifest echoes the inputs a result was derived from.
type Manifest struct {
	ProfileID      string             `json:"profile_id"`
	DatasetVersion string             `json:"dataset_version"`
	Overrides      map[string]float64 `json:"overrides"`
	GeneratedAt    time.Time          `json:"generated_at"`
	SourceKeys     []string           `json:"source_keys"`
}

// Figures bundles the three derived figure shapes.
type Figures struct {
	Stacked StackedFigure `json:"stacked"`
	Bubble  BubbleFigure  `json:"bubble"`
	Sankey  SankeyFigure  `json:"sankey"`
}

// StackedFigure aggregates mean and band sums per category. Null bounds on
// individual activities contribute zero to the sums rather than nulling them.
type StackedFigure struct {
	Rows         []StackedRow `json:"rows"`
	CitationKeys []string     `json:"citation_keys"`
}

// StackedRow is one category's aggregate.
type StackedRow struct {
	Category string  `json:"category"`
	Mean     float64 `json:"mean"`
	Low      float64 `json:"low"`
	High     float64 `json:"high"`
}

// BubbleFigure lists surviving activities by descending mean emissions.
type BubbleFigure struct {
	Rows         []BubbleRow `json:"rows"`
	CitationKeys []string    `json:"citation_keys"`
}

// BubbleRow is one surviving activity. Low/High are null when the mean is not
// positive, distinguishing "no data" from an exact zero.
type BubbleRow struct {
	ActivityID string   `json:"activity_id"`
	Label      string   `json:"label"`
	Category   string   `json:"category"`
	Mean       float64  `json:"mean"`
	Low        *float64 `json:"low"`
	High       *float64 `json:"high"`
}

// SankeyFigure carries category and activity nodes plus one link per
// surviving activity.
type SankeyFigure struct {
	Nodes        []SankeyNode `json:"nodes"`
	Links        []SankeyLink `json:"links"`
	CitationKeys []string     `json:"citation_keys"`
}

// SankeyNode is a deduplicated graph node.
type SankeyNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// SankeyLink connects a category node to an activity node and carries the
// same mean/low/high triple as the activity's bubble row.
type SankeyLink struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Mean   float64  `json:"mean"`
	Low    *float64 `json:"low"`
	High   *float64 `json:"high"`
}

// Reference resolves a citation key to its rendered text. Ordinals start at 1
// and follow catalog order.
type Reference struct {
	Key     string `json:"key"`
	Ordinal int    `json:"ordinal"`
	Text    string `json:"text"`
}

// Engine derives emission figures from an activity catalog.
type Engine struct {
	catalog            []catalog.Activity
	backendLabel       string
	defaultUncertainty float64
	now                func() time.Time
}

// New creates an Engine over the given catalog with configuration options.
func New(activities []catalog.Activity, opts ...Option) *Engine {
	e := &Engine{
		catalog:            make([]catalog.Activity, len(activities)),
		backendLabel:       defaultBackendLabel,
		defaultUncertainty: defaultUncertainty,
		now:                time.Now,
	}
	copy(e.catalog, activities)

	// Apply all options
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// contribution is one surviving activity with its derived band.
type contribution struct {
	activity catalog.Activity
	mean     float64
	low      *float64
	high     *float64
}

// Compute derives the result for a validated request under the given dataset
// version. Identical inputs always produce identical results apart from the
// manifest's generated_at timestamp.
func (e *Engine) Compute(req model.ComputeRequest, datasetVersion string) (*Result, error) {
	survivors := e.resolve(req.Overrides)
	citations := citationKeys(survivors)

	datasetID, err := e.datasetID(req, datasetVersion)
	if err != nil {
		return nil, err
	}

	return &Result{
		DatasetID: datasetID,
		Manifest: Manifest{
			ProfileID:      req.ProfileID,
			DatasetVersion: datasetVersion,
			Overrides:      copyOverrides(req.Overrides),
			GeneratedAt:    e.now().UTC(),
			SourceKeys:     citations,
		},
		Figures: Figures{
			Stacked: stackedFigure(survivors, citations),
			Bubble:  bubbleFigure(survivors, citations),
			Sankey:  sankeyFigure(survivors, citations),
		},
		References: references(citations),
	}, nil
}

// resolve applies override-else-default quantity resolution, clamps negatives
// to zero, drops zero-quantity activities, and annualizes the rest.
func (e *Engine) resolve(overrides map[string]float64) []contribution {
	out := make([]contribution, 0, len(e.catalog))
	for _, act := range e.catalog {
		weekly := act.DefaultQuantity
		if quantity, ok := overrides[act.ID]; ok {
			weekly = quantity
		}
		if weekly < 0 {
			weekly = 0
		}
		if weekly == 0 {
			// Zero quantity contributes to no figure and no citation.
			continue
		}

		mean := round2(weekly * weeksPerYear * act.Factor)
		fraction := act.Uncertainty
		if fraction <= 0 {
			fraction = e.defaultUncertainty
		}
		var low, high *float64
		if mean > 0 {
			l := round2(mean * (1 - fraction))
			h := round2(mean * (1 + fraction))
			low, high = &l, &h
		}
		out = append(out, contribution{activity: act, mean: mean, low: low, high: high})
	}
	return out
}

func stackedFigure(survivors []contribution, citations []string) StackedFigure {
	rows := make([]StackedRow, 0)
	index := make(map[string]int)
	for _, c := range survivors {
		i, ok := index[c.activity.Category]
		if !ok {
			i = len(rows)
			index[c.activity.Category] = i
			rows = append(rows, StackedRow{Category: c.activity.Category})
		}
		rows[i].Mean += c.mean
		if c.low != nil {
			rows[i].Low += *c.low
		}
		if c.high != nil {
			rows[i].High += *c.high
		}
	}
	for i := range rows {
		rows[i].Mean = round2(rows[i].Mean)
		rows[i].Low = round2(rows[i].Low)
		rows[i].High = round2(rows[i].High)
	}
	return StackedFigure{Rows: rows, CitationKeys: citations}
}

func bubbleFigure(survivors []contribution, citations []string) BubbleFigure {
	rows := make([]BubbleRow, 0, len(survivors))
	for _, c := range survivors {
		rows = append(rows, BubbleRow{
			ActivityID: c.activity.ID,
			Label:      c.activity.Label,
			Category:   c.activity.Category,
			Mean:       c.mean,
			Low:        c.low,
			High:       c.high,
		})
	}
	// Catalog order breaks ties, so the sort must be stable.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Mean > rows[j].Mean })
	return BubbleFigure{Rows: rows, CitationKeys: citations}
}

func sankeyFigure(survivors []contribution, citations []string) SankeyFigure {
	nodes := make([]SankeyNode, 0, len(survivors)*2)
	links := make([]SankeyLink, 0, len(survivors))
	seen := make(map[string]bool)
	for _, c := range survivors {
		categoryID := "category:" + c.activity.Category
		if !seen[categoryID] {
			seen[categoryID] = true
			nodes = append(nodes, SankeyNode{ID: categoryID, Label: c.activity.Category})
		}
		if !seen[c.activity.ID] {
			seen[c.activity.ID] = true
			nodes = append(nodes, SankeyNode{ID: c.activity.ID, Label: c.activity.Label})
		}
		links = append(links, SankeyLink{
			Source: categoryID,
			Target: c.activity.ID,
			Mean:   c.mean,
			Low:    c.low,
			High:   c.high,
		})
	}
	return SankeyFigure{Nodes: nodes, Links: links, CitationKeys: citations}
}

// citationKeys deduplicates surviving reference keys in catalog order.
func citationKeys(survivors []contribution) []string {
	keys := make([]string, 0, len(survivors))
	seen := make(map[string]bool)
	for _, c := range survivors {
		if seen[c.activity.Reference] {
			continue
		}
		seen[c.activity.Reference] = true
		keys = append(keys, c.activity.Reference)
	}
	return keys
}

func references(citations []string) []Reference {
	refs := make([]Reference, 0, len(citations))
	for i, key := range citations {
		text, _ := catalog.ReferenceText(key)
		refs = append(refs, Reference{Key: key, Ordinal: i + 1, Text: text})
	}
	return refs
}

// datasetID derives the deterministic dataset identifier: the version
// fingerprint, a colon, and the digest of the request identity tuple.
func (e *Engine) datasetID(req model.ComputeRequest, datasetVersion string) (string, error) {
	overrides := req.Overrides
	if overrides == nil {
		overrides = map[string]float64{}
	}
	digest, err := canonical.ShortDigest(map[string]any{
		"profile_id":      req.ProfileID,
		"overrides":       overrides,
		"dataset_version": datasetVersion,
		"backend_label":   e.backendLabel,
	})
	if err != nil {
		return "", err
	}
	return canonical.Fingerprint(datasetVersion) + ":" + digest, nil
}

func copyOverrides(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// round2 rounds to two decimal places, half away from zero.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
