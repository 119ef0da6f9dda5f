package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"

	"github.com/kart-io/fixgenie/internal/fixgenie/corpus"
	"github.com/kart-io/fixgenie/internal/fixgenie/metrics"
	"github.com/kart-io/fixgenie/internal/model"
)

// defaultWorkers bounds concurrent embedding calls during a batch ingest.
const defaultWorkers = 4

// QuarantineEntry records one rejected incident and why.
type QuarantineEntry struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Report summarises one ingest batch.
type Report struct {
	Total       int               `json:"total"`
	Ingested    int               `json:"ingested"`
	Quarantined []QuarantineEntry `json:"quarantined,omitempty"`
}

// Pipeline pushes incidents through normalise, validate and publish. Records
// that fail validation are quarantined; the rest of the batch proceeds.
type Pipeline struct {
	manager *corpus.Manager
	workers int
}

// NewPipeline creates an ingest pipeline over the corpus manager.
func NewPipeline(manager *corpus.Manager, workers int) *Pipeline {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Pipeline{manager: manager, workers: workers}
}

// Run ingests a batch of incidents concurrently. Each record is normalised,
// validated and published independently, so a bad record never blocks its
// neighbours. Re-ingesting an id replaces the previous version.
func (p *Pipeline) Run(ctx context.Context, incidents []*model.Incident) (*Report, error) {
	report := &Report{Total: len(incidents)}
	if len(incidents) == 0 {
		return report, nil
	}

	pool, err := ants.NewPool(p.workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, inc := range incidents {
		inc := inc
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			Normalize(inc)
			if err := inc.Validate(); err != nil {
				mu.Lock()
				report.Quarantined = append(report.Quarantined, QuarantineEntry{ID: inc.ID, Reason: err.Error()})
				mu.Unlock()
				logger.Warnw("incident quarantined", "incident_id", inc.ID, "reason", err)
				return
			}

			if err := p.manager.Upsert(ctx, inc); err != nil {
				mu.Lock()
				report.Quarantined = append(report.Quarantined, QuarantineEntry{ID: inc.ID, Reason: err.Error()})
				mu.Unlock()
				logger.Errorw("incident publish failed", "incident_id", inc.ID, "error", err)
				return
			}

			mu.Lock()
			report.Ingested++
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			report.Quarantined = append(report.Quarantined, QuarantineEntry{ID: inc.ID, Reason: submitErr.Error()})
			mu.Unlock()
		}
	}
	wg.Wait()

	sort.Slice(report.Quarantined, func(i, j int) bool {
		return report.Quarantined[i].ID < report.Quarantined[j].ID
	})

	metrics.Get().RecordIngest(report.Ingested, len(report.Quarantined), nil)
	logger.Infow("ingest batch complete",
		"total", report.Total,
		"ingested", report.Ingested,
		"quarantined", len(report.Quarantined))
	return report, nil
}

// RunFile loads and ingests an export file, dispatching on its extension.
func (p *Pipeline) RunFile(ctx context.Context, path string) (*Report, error) {
	var (
		incidents []*model.Incident
		err       error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		incidents, err = LoadJSON(path)
	case ".csv":
		incidents, err = LoadCSV(path, CSVMapping{})
	default:
		return nil, fmt.Errorf("unsupported export format %q", filepath.Ext(path))
	}
	if err != nil {
		metrics.Get().RecordIngest(0, 0, err)
		return nil, err
	}
	return p.Run(ctx, incidents)
}
