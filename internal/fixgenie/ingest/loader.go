package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kart-io/fixgenie/internal/model"
)

// LoadJSON reads an incident export file containing a JSON array of incident
// records.
func LoadJSON(path string) ([]*model.Incident, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var incidents []*model.Incident
	if err := json.Unmarshal(data, &incidents); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return incidents, nil
}

// CSVMapping maps incident fields to CSV column headers. Zero-valued fields
// fall back to the field name itself (id, title, description, ...).
type CSVMapping struct {
	ID          string
	Title       string
	Description string
	Resolution  string
	Tags        string
	CreatedAt   string
	ResolvedBy  string
	Category    string
	Priority    string
}

func (m CSVMapping) withDefaults() CSVMapping {
	def := func(v, fallback string) string {
		if v == "" {
			return fallback
		}
		return v
	}
	return CSVMapping{
		ID:          def(m.ID, "id"),
		Title:       def(m.Title, "title"),
		Description: def(m.Description, "description"),
		Resolution:  def(m.Resolution, "resolution"),
		Tags:        def(m.Tags, "tags"),
		CreatedAt:   def(m.CreatedAt, "created_at"),
		ResolvedBy:  def(m.ResolvedBy, "resolved_by"),
		Category:    def(m.Category, "category"),
		Priority:    def(m.Priority, "priority"),
	}
}

// LoadCSV reads an incident export in CSV form. The first row must be a
// header; mapping resolves which column feeds which field. Tags columns are
// split on commas or semicolons.
func LoadCSV(path string, mapping CSVMapping) ([]*model.Incident, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	mapping = mapping.withDefaults()
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[strings.ToLower(strings.TrimSpace(name))] = i
	}

	idIdx, ok := colIdx[strings.ToLower(mapping.ID)]
	if !ok {
		return nil, fmt.Errorf("csv is missing the id column %q", mapping.ID)
	}

	cell := func(row []string, name string) string {
		idx, ok := colIdx[strings.ToLower(name)]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var incidents []*model.Incident
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row: %w", err)
		}
		if idIdx >= len(row) || strings.TrimSpace(row[idIdx]) == "" {
			continue
		}

		inc := &model.Incident{
			ID:          cell(row, mapping.ID),
			Title:       cell(row, mapping.Title),
			Description: cell(row, mapping.Description),
			Resolution:  cell(row, mapping.Resolution),
			Tags:        splitTags(cell(row, mapping.Tags)),
			ResolvedBy:  cell(row, mapping.ResolvedBy),
			Category:    cell(row, mapping.Category),
			Priority:    cell(row, mapping.Priority),
		}
		if raw := cell(row, mapping.CreatedAt); raw != "" {
			if ts, err := parseTimestamp(raw); err == nil {
				inc.CreatedAt = ts
			}
		}
		incidents = append(incidents, inc)
	}
	return incidents, nil
}

func splitTags(raw string) model.Tags {
	if raw == "" {
		return nil
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})
	tags := make(model.Tags, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			tags = append(tags, f)
		}
	}
	return tags
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}
