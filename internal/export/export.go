// Package export renders the whole catalog in the formats offered for download.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/claytondukes/dibo-gems/internal/domain"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

var ErrUnknownFormat = errors.New("unknown export format")

// Catalog groups gems by tier and then by display name.
type Catalog map[domain.Tier]map[string]domain.Gem

// CSVHeader is the first row of a CSV export.
var CSVHeader = []string{"stars", "name", "rank", "effect_type", "description", "conditions", "value", "duration", "cooldown"}

// ParseFormat accepts json, yaml (or yml) and csv. An empty string means json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/json"
	}
}

// FileName is the suggested download name.
func (f Format) FileName() string {
	return "gems." + string(f)
}

// Write renders catalog to w in format f.
func Write(w io.Writer, f Format, catalog Catalog) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, catalog)
	case FormatYAML:
		return writeYAML(w, catalog)
	case FormatCSV:
		return writeCSV(w, catalog)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// nested keys tiers by their directory name, e.g. "2star".
func nested(catalog Catalog) map[string]map[string]domain.Gem {
	out := make(map[string]map[string]domain.Gem, len(catalog))
	for tier, gems := range catalog {
		out[tier.Dir()] = gems
	}
	return out
}

func writeJSON(w io.Writer, catalog Catalog) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(nested(catalog)); err != nil {
		return fmt.Errorf("encode json export: %w", err)
	}
	return nil
}

// writeYAML goes through JSON so the YAML document carries exactly the
// fields and names of the stored documents, unknown ones included.
func writeYAML(w io.Writer, catalog Catalog) error {
	raw, err := json.Marshal(nested(catalog))
	if err != nil {
		return fmt.Errorf("encode yaml export: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("encode yaml export: %w", err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode yaml export: %w", err)
	}
	return enc.Close()
}

func writeCSV(w io.Writer, catalog Catalog) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	tiers := make([]domain.Tier, 0, len(catalog))
	for tier := range catalog {
		tiers = append(tiers, tier)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i] < tiers[j] })

	for _, tier := range tiers {
		names := make([]string, 0, len(catalog[tier]))
		for name := range catalog[tier] {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			gem := catalog[tier][name]
			for _, rank := range gem.RankNumbers() {
				for _, e := range gem.Ranks[rank].Effects {
					row := []string{
						tier.String(),
						gem.Name,
						rank,
						string(e.Type),
						e.Description,
						joinConditions(e.Conditions),
						formatNumber(e.Value),
						formatNumber(e.Duration),
						formatNumber(e.Cooldown),
					}
					if err := writer.Write(row); err != nil {
						return fmt.Errorf("failed to write CSV row: %w", err)
					}
				}
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func joinConditions(conds []domain.Condition) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = string(c)
	}
	return strings.Join(parts, "|")
}

func formatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
