// Package orchestrator implements C10: discovering archives, fanning
// them out across a fixed worker pool, and running the full C1-C9
// pipeline for each one.
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edigeo-cadastre/ingest/internal/archive"
	"github.com/edigeo-cadastre/ingest/internal/config"
	"github.com/edigeo-cadastre/ingest/internal/department"
	"github.com/edigeo-cadastre/ingest/internal/edigeo"
	"github.com/edigeo-cadastre/ingest/internal/feature"
	"github.com/edigeo-cadastre/ingest/internal/ingesterrors"
	"github.com/edigeo-cadastre/ingest/internal/logger"
	"github.com/edigeo-cadastre/ingest/internal/metrics"
	"github.com/edigeo-cadastre/ingest/internal/proj"
	"github.com/edigeo-cadastre/ingest/internal/sink"
	"github.com/edigeo-cadastre/ingest/internal/transform"
)

// Stats summarizes one Run across every archive it touched.
type Stats struct {
	Total      int64
	Skipped    int64
	Succeeded  int64
	Failed     int64
	RowsLoaded int64

	mu       sync.Mutex
	Failures []*ingesterrors.ArchiveError
}

func (s *Stats) recordFailure(err *ingesterrors.ArchiveError) {
	s.mu.Lock()
	s.Failures = append(s.Failures, err)
	s.mu.Unlock()
}

// Run discovers every archive under cfg.SourcePath, synthesizes the
// target schema from tableCfg, and ingests each archive through a
// fixed-size worker pool (N = min(cfg.Workers, NumCPU)), per spec.md
// §4.10/§5. Grounded on omniscale-imposm3's workerPool
// (database/postgis/util.go: a fixed set of goroutines draining a
// task channel) combined with golang.org/x/sync/errgroup for
// context-aware cancellation, the same hybrid
// internal/pipeline/coordinator.go uses for its own loader fan-out.
func Run(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, tableCfg config.TableConfigSet) (*Stats, error) {
	log := logger.Get()

	archives, err := archive.Discover(cfg.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("discovering archives under %s: %w", cfg.SourcePath, err)
	}
	stats := &Stats{Total: int64(len(archives))}
	if len(archives) == 0 {
		log.Warn("no .tar.bz2 archives found", zap.String("source", cfg.SourcePath))
		return stats, nil
	}

	if err := sink.EnsureSchema(ctx, pool, cfg.TargetSchema, cfg.DropSchema); err != nil {
		return nil, err
	}
	for kind, tc := range tableCfg {
		if err := sink.EnsureTable(ctx, pool, cfg.TargetSchema, tc, cfg.DropTable); err != nil {
			return nil, fmt.Errorf("table %s (%s): %w", tc.Table, kind, err)
		}
	}
	if err := sink.EnsureJournalTable(ctx, pool, cfg.TargetSchema); err != nil {
		return nil, err
	}

	wantedKinds := map[string]bool{"COMMUNE_id": true, "SECTION_id": true}
	for kind, tc := range tableCfg {
		if tc.Type == "FeatureCollection" {
			wantedKinds[kind] = true
		}
	}

	var depIndex *department.Index
	depPolicy := department.Policy{Mode: cfg.DepPolicy.Mode, Code: cfg.DepPolicy.Code}
	if depPolicy.Mode == "auto" && cfg.DepBoundary != "" {
		depIndex, err = department.Load(cfg.DepBoundary)
		if err != nil {
			return nil, fmt.Errorf("loading department boundary set: %w", err)
		}
	}

	if cfg.MetricsInterval > 0 {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		collector := metrics.NewCollector(cfg.MetricsInterval, log)
		go collector.Start(metricsCtx)
	}

	workers := cfg.Workers
	if workers > runtime.NumCPU() {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}

	tracker := newProgressTracker(stats.Total, "ingest")
	var processed int64

	paths := make(chan string)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(paths)
		for _, path := range archives {
			select {
			case paths <- path:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for path := range paths {
				// Only the dispatcher above watches gctx: an archive already
				// handed to a worker runs to completion after a stop signal.
				rows, skipped, archErr := processArchive(context.WithoutCancel(gctx), cfg, pool, tableCfg, wantedKinds, depPolicy, depIndex, path)
				n := atomic.AddInt64(&processed, 1)

				switch {
				case archErr != nil:
					atomic.AddInt64(&stats.Failed, 1)
					stats.recordFailure(archErr)
					log.Error("archive failed", zap.String("archive", path), zap.Error(archErr))
				case skipped:
					atomic.AddInt64(&stats.Skipped, 1)
				default:
					atomic.AddInt64(&stats.Succeeded, 1)
					atomic.AddInt64(&stats.RowsLoaded, rows)
				}

				logProgress(log, tracker, n, stats.Total, cfg.Verbosity)

				// A lost connection is retried once inside the sink
				// itself (internal/sink.LoadRows); surfacing here means
				// the retry also failed, so per spec.md §7 this worker
				// stops pulling further archives rather than risk
				// repeatedly failing against a database that is down.
				if archErr != nil && errors.Is(archErr.Kind, ingesterrors.ErrConnectionLost) {
					log.Error("connection lost, worker stopping", zap.String("archive", path))
					return nil
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

// logProgress logs every archive at verbosity >= 3, every 10th at
// verbosity >= 2, and every 100th otherwise, per spec.md §4.10.
func logProgress(log *zap.Logger, tracker *progressTracker, n, total int64, verbosity int) {
	step := int64(100)
	switch {
	case verbosity >= 3:
		step = 1
	case verbosity >= 2:
		step = 10
	}
	if n%step != 0 && n != total {
		return
	}
	p := tracker.calculate(n)
	log.Info("ingest progress",
		zap.Int64("processed", p.Current),
		zap.Int64("total", p.Total),
		zap.Float64("pct", p.Percentage),
		zap.String("throughput", formatThroughput(p.Throughput)),
		zap.String("eta", formatETA(p.ETA)),
	)
}

// processArchive runs C1-C9 for one archive. The returned row count
// and skipped flag are only meaningful when archErr is nil.
func processArchive(
	ctx context.Context,
	cfg *config.Config,
	pool *pgxpool.Pool,
	tableCfg config.TableConfigSet,
	wantedKinds map[string]bool,
	depPolicy department.Policy,
	depIndex *department.Index,
	path string,
) (rowsLoaded int64, skipped bool, archErr *ingesterrors.ArchiveError) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false, ingesterrors.Wrap(path, ingesterrors.ErrArchiveIO, err)
	}

	checksum, err := sink.ChecksumReader(bytes.NewReader(data))
	if err != nil {
		return 0, false, ingesterrors.Wrap(path, ingesterrors.ErrArchiveIO, err)
	}
	seen, err := sink.Seen(ctx, pool, cfg.TargetSchema, path, checksum)
	if err != nil {
		return 0, false, ingesterrors.Wrap(path, ingesterrors.ErrConnectionLost, err)
	}
	if seen {
		return 0, true, nil
	}

	bundle, err := archive.Read(path, bytes.NewReader(data))
	if err != nil {
		return 0, false, wrapArchiveErr(path, err, ingesterrors.ErrArchiveIO)
	}

	// The parsed schema is only used to confirm the SCD member is
	// well-formed; field coercions are driven by the JSON table config,
	// not by the EDIGEO schema's own attribute descriptors.
	if _, err := edigeo.ParseSCD(bundle.SCD); err != nil {
		return 0, false, ingesterrors.Wrap(path, ingesterrors.ErrMissingMember, err)
	}
	sourceEPSG, _, err := edigeo.ParseGEO(bundle.GEO)
	if err != nil {
		return 0, false, ingesterrors.Wrap(path, ingesterrors.ErrUnsupportedCRS, err)
	}

	store := edigeo.NewStore()
	for _, vec := range bundle.VEC {
		if err := edigeo.ParseVEC(vec, store); err != nil {
			return 0, false, ingesterrors.Wrap(path, ingesterrors.ErrArchiveIO, err)
		}
	}

	features, buildErrs, pairs := feature.Build(store, wantedKinds)
	for _, be := range buildErrs {
		logger.Get().Warn("feature geometry could not be assembled",
			zap.String("archive", path), zap.String("feature", be.FeatureID),
			zap.String("kind", be.Kind), zap.String("reason", be.Reason))
	}

	byKind := make(map[string][]feature.Feature)
	for _, f := range features {
		byKind[f.Kind] = append(byKind[f.Kind], f)
	}

	communeID, sectionID, sectionBBox := communeAndSection(byKind)

	depCode, depWarning := department.Resolve(depPolicy, path, sectionBBox, depIndex)
	if depWarning != "" {
		logger.Get().Warn(depWarning, zap.String("archive", path))
	}

	reproject, err := proj.NewReprojector(sourceEPSG, cfg.OutputEPSG)
	if err != nil {
		return 0, false, ingesterrors.Wrap(path, ingesterrors.ErrUnsupportedCRS, err)
	}

	engine := transform.NewEngine(reproject, transform.Context{
		Dep:       depCode,
		Millesime: cfg.Millesime.Raw,
		CommuneID: communeID,
		SectionID: sectionID,
	})

	// FeatureCollection tables load before relation tables, so the rows a
	// relation's foreign keys reference are committed first.
	kinds := make([]string, 0, len(tableCfg))
	for kind := range tableCfg {
		kinds = append(kinds, kind)
	}
	sort.SliceStable(kinds, func(i, j int) bool {
		return tableCfg[kinds[i]].Type == "FeatureCollection" && tableCfg[kinds[j]].Type != "FeatureCollection"
	})

	var total int64
	for _, kind := range kinds {
		tc := tableCfg[kind]
		var rows []transform.Row
		switch tc.Type {
		case "FeatureCollection":
			for _, f := range byKind[kind] {
				row, err := engine.BuildFeatureRow(tc, f)
				if err != nil {
					logger.Get().Warn("feature row rejected", zap.String("archive", path),
						zap.String("feature", f.ID), zap.Error(err))
					continue
				}
				rows = append(rows, row)
			}
		case "relation":
			keys := relationKeys(tc)
			for _, pair := range pairs {
				if !pairMatches(pair, keys) {
					continue
				}
				row, err := engine.BuildRelationRow(tc, pair)
				if err != nil {
					logger.Get().Warn("relation row rejected", zap.String("archive", path),
						zap.String("link", pair.LinkID), zap.Error(err))
					continue
				}
				rows = append(rows, row)
			}
		}
		if len(rows) == 0 {
			continue
		}
		n, err := sink.LoadRows(ctx, pool, cfg.TargetSchema, tc, cfg.OutputEPSG, rows)
		if err != nil {
			return total, false, wrapArchiveErr(path, err, ingesterrors.ErrSinkConflict)
		}
		total += n
	}

	if err := sink.Record(ctx, pool, cfg.TargetSchema, path, checksum); err != nil {
		return total, false, ingesterrors.Wrap(path, ingesterrors.ErrConnectionLost, err)
	}
	return total, false, nil
}

// wrapArchiveErr recovers err's sentinel kind (if it already carries
// one, including when err already is an *ingesterrors.ArchiveError)
// and attaches the archive path to it, falling back to fallback when
// the error doesn't wrap any recognized kind.
func wrapArchiveErr(path string, err error, fallback error) *ingesterrors.ArchiveError {
	if ae, ok := err.(*ingesterrors.ArchiveError); ok {
		return ae
	}
	kind := ingesterrors.Classify(err)
	if kind == nil {
		kind = fallback
	}
	return ingesterrors.Wrap(path, kind, err)
}

// communeAndSection extracts the constant-table values spec.md §4.8
// feeds to addDep/addMillesime's siblings (the "commune_id"/
// "section_id" const selectors): the id of the first COMMUNE and the
// first SECTION feature, plus the union of every SECTION feature's
// bounding box for the department resolver's spatial mode.
func communeAndSection(byKind map[string][]feature.Feature) (communeID, sectionID string, bbox orb.Bound) {
	if cs := byKind["COMMUNE_id"]; len(cs) > 0 {
		communeID = cs[0].ID
	}
	sections := byKind["SECTION_id"]
	if len(sections) == 0 {
		return communeID, sectionID, bbox
	}
	sectionID = sections[0].ID
	first := true
	for _, s := range sections {
		b := s.Geometry.Bound()
		if first {
			bbox, first = b, false
		} else {
			bbox = bbox.Union(b)
		}
	}
	return communeID, sectionID, bbox
}

// relationKeys returns the JSON-selector keys a relation TableConfig's
// fields address (excluding the "millesime" const field), e.g.
// {"numvoie_id", "parcelle_id"} for NUMVOIE_PARCELLE.
func relationKeys(tc config.TableConfig) []string {
	var keys []string
	for _, fm := range tc.Fields {
		if fm.JSON != "" {
			keys = append(keys, fm.JSON)
		}
	}
	return keys
}

func pairMatches(pair feature.RelationPair, keys []string) bool {
	for _, k := range keys {
		if _, ok := pair.Kinds[k]; !ok {
			return false
		}
	}
	return len(keys) > 0
}

// ApplyDeferredForeignKeys runs every table's deferred foreign-key
// DDL after every archive has been loaded, per spec.md §5's ordering
// guarantee ("deferred foreign-key DDL runs strictly after all
// archives complete").
func ApplyDeferredForeignKeys(ctx context.Context, pool *pgxpool.Pool, schema string, tableCfg config.TableConfigSet) error {
	for kind, tc := range tableCfg {
		if err := sink.ApplyForeignKeys(ctx, pool, schema, tc); err != nil {
			return fmt.Errorf("table %s (%s): %w", tc.Table, kind, err)
		}
	}
	return nil
}
