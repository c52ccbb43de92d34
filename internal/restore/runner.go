// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package restore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/jinkaiteo/edms-sub000/internal/db"
	"github.com/jinkaiteo/edms-sub000/internal/logging"
	"github.com/jinkaiteo/edms-sub000/internal/model"
	"github.com/jinkaiteo/edms-sub000/internal/notify"
)

// prefetchWorkers bounds the concurrent read-side lookups that warm the
// session index before the write transaction opens.
const prefetchWorkers = 8

// Options tunes one restore run.
type Options struct {
	Policy      Policy
	Detect      DetectPolicy
	ArtifactDir string
	// CommitPerTier commits after every dependency tier instead of holding
	// one transaction across the whole run. A failure then loses at most
	// the current tier.
	CommitPerTier bool
	// Timeout bounds the run; zero means no limit. A run cut short ends
	// partially-completed, already-committed work stays.
	Timeout time.Duration
	// SkipValidation drops the post-restore integrity pass.
	SkipValidation bool
}

// Service owns restore sessions: it runs them, tracks them in memory and
// persists their reports.
type Service struct {
	store    db.Store
	notifier notify.Notifier

	mu       sync.Mutex
	sessions map[string]*Session
	cancels  map[string]context.CancelFunc
}

// NewService builds a session service on a destination store. A nil
// notifier falls back to log delivery.
func NewService(store db.Store, n notify.Notifier) *Service {
	if n == nil {
		n = notify.LogNotifier{}
	}
	return &Service{store: store, notifier: n, sessions: map[string]*Session{}, cancels: map[string]context.CancelFunc{}}
}

// Session returns a tracked session by id.
func (s *Service) Session(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// StartRestore queues a restore and runs it in the background, detached
// from the caller's cancellation. The returned session id can be polled
// via Session, awaited via Wait or interrupted via Cancel.
func (s *Service) StartRestore(ctx context.Context, pkg *model.BackupPackage, opts Options) (string, error) {
	if err := checkFormat(pkg); err != nil {
		return "", err
	}
	sess := s.newSession()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.cancels[sess.ID] = cancel
	s.mu.Unlock()
	go func() {
		defer cancel()
		if _, err := s.run(runCtx, sess, pkg, opts); err != nil {
			logging.Errorf("restore session %s: %v", sess.ID, err)
		}
	}()
	return sess.ID, nil
}

// Wait blocks until a tracked session finishes and returns it. The context
// bounds the wait, not the session.
func (s *Service) Wait(ctx context.Context, id string) (*Session, error) {
	sess, ok := s.Session(id)
	if !ok {
		return nil, fmt.Errorf("unknown restore session %s", id)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-sess.Done():
		return sess, nil
	}
}

// Cancel interrupts a background session if it is still running; the run
// winds down cooperatively and settles as partially-completed. It reports
// whether the id names a tracked background session.
func (s *Service) Cancel(id string) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Restore runs a restore synchronously and returns its report.
func (s *Service) Restore(ctx context.Context, pkg *model.BackupPackage, opts Options) (*Report, error) {
	if err := checkFormat(pkg); err != nil {
		return nil, err
	}
	return s.run(ctx, s.newSession(), pkg, opts)
}

func (s *Service) newSession() *Session {
	sess := NewSession(uuid.NewString())
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

func checkFormat(pkg *model.BackupPackage) error {
	if pkg.Manifest.FormatVersion > model.ManifestVersion {
		return &SchemaVersionMismatchError{PackageVersion: pkg.Manifest.FormatVersion, EngineVersion: model.ManifestVersion}
	}
	return nil
}

func (s *Service) run(ctx context.Context, sess *Session, pkg *model.BackupPackage, opts Options) (*Report, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	if opts.Detect == (DetectPolicy{}) {
		opts.Detect = DefaultDetectPolicy()
	}

	sess.SetStatus(StatusRunning)
	if err := s.store.LogAction("restore", fmt.Sprintf("session %s started (%d records)", sess.ID, pkg.TotalRecords())); err != nil {
		logging.Warnf("could not record audit entry for session %s: %v", sess.ID, err)
	}
	bdb := s.store.Bun()

	det, err := Detect(ctx, bdb, pkg, opts.Detect)
	if err != nil {
		return s.finish(sess, nil, err)
	}
	sess.KeyFormat = det.KeyFormat
	sess.Scenario = det.Scenario
	if det.KeyFormat == model.KeyFormatLegacy {
		ApplyLegacyShim(pkg)
	}

	if err := extractArtifacts(pkg, opts.ArtifactDir); err != nil {
		return s.finish(sess, nil, err)
	}

	types := make([]string, 0, len(pkg.Records))
	for t := range pkg.Records {
		types = append(types, t)
	}
	sort.Strings(types)
	tiers, deferred, err := TopoOrder(types)
	if err != nil {
		return s.finish(sess, nil, err)
	}

	res := NewResolver(bdb, sess, opts.Policy)
	runErr := s.runTiers(ctx, bdb, res, sess, pkg, tiers, deferred, opts)

	var v *Validation
	if runErr == nil && !opts.SkipValidation {
		v, err = Validate(ctx, bdb, opts.ArtifactDir)
		if err != nil {
			runErr = err
		}
	}
	return s.finish(sess, v, runErr)
}

// runTiers drives the processor chain over the dependency tiers, either in
// one transaction or one per tier.
func (s *Service) runTiers(ctx context.Context, bdb *bun.DB, res *Resolver, sess *Session, pkg *model.BackupPackage, tiers []Tier, deferred DeferredFields, opts Options) error {
	var fallback []recWork
	var patches []deferredPatch

	runTier := func(ctx context.Context, tx bun.Tx, tier Tier, first bool) error {
		e := newEnhancedRun(tx, res, sess, pkg)
		if first && sess.Scenario == ScenarioReduced {
			if err := e.buildIdentifierMapping(ctx); err != nil {
				return err
			}
		}
		for _, typeName := range tier {
			if sess.Scenario == ScenarioReduced {
				if ti, ok := model.TypeByName(typeName); ok && ti.ResetPreserved {
					continue // already reconciled by the identifier mapping
				}
			}
			fb, ps, err := e.processModelType(ctx, typeName, deferred[typeName])
			if err != nil {
				return err
			}
			fallback = append(fallback, fb...)
			patches = append(patches, ps...)
		}
		return nil
	}

	finalPass := func(ctx context.Context, tx bun.Tx) error {
		e := newEnhancedRun(tx, res, sess, pkg)
		remaining, directPatches, err := e.runDirect(ctx, fallback)
		if err != nil {
			return err
		}
		patches = append(patches, directPatches...)
		rawPatches, err := e.runRaw(ctx, remaining)
		if err != nil {
			return err
		}
		patches = append(patches, rawPatches...)
		return e.patchDeferred(ctx, patches)
	}

	if opts.CommitPerTier {
		for i, tier := range tiers {
			s.prefetchTier(ctx, res, pkg, tier)
			if err := db.WithTx(ctx, bdb, func(ctx context.Context, tx bun.Tx) error {
				return runTier(ctx, tx, tier, i == 0)
			}); err != nil {
				if i == 0 {
					// Nothing committed yet; the report's outcomes never
					// reached the destination.
					sess.RolledBack = true
				}
				return err
			}
		}
		return db.WithTx(ctx, bdb, finalPass)
	}

	for _, tier := range tiers {
		s.prefetchTier(ctx, res, pkg, tier)
	}
	err := db.WithTx(ctx, bdb, func(ctx context.Context, tx bun.Tx) error {
		for i, tier := range tiers {
			if err := runTier(ctx, tx, tier, i == 0); err != nil {
				return err
			}
		}
		return finalPass(ctx, tx)
	})
	if err != nil {
		// Single-transaction mode: any failure rolled back every record
		// outcome recorded above.
		sess.RolledBack = true
	}
	return err
}

// prefetchTier warms the session index with read-only lookups for a tier's
// records and their reference targets, concurrently, before any write
// transaction opens. Misses are fine; the write pass re-resolves.
func (s *Service) prefetchTier(ctx context.Context, res *Resolver, pkg *model.BackupPackage, tier Tier) {
	type lookup struct {
		modelType string
		key       []string
	}
	var jobs []lookup
	for _, typeName := range tier {
		ti, ok := model.TypeByName(typeName)
		if !ok {
			continue
		}
		for _, rec := range pkg.RecordsFor(typeName) {
			jobs = append(jobs, lookup{typeName, rec.NaturalKey})
			for field, target := range ti.RefFields {
				if fv, ok := rec.Fields[field]; ok && fv.Ref != nil {
					jobs = append(jobs, lookup{target, fv.Ref.TargetNaturalKey})
				}
			}
		}
	}

	ch := make(chan lookup)
	var wg sync.WaitGroup
	for i := 0; i < prefetchWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range ch {
				// Resolve caches hits in the session index as a side effect.
				_, _ = res.Resolve(ctx, j.modelType, j.key, false, nil)
			}
		}()
	}
	for _, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		ch <- j
	}
	close(ch)
	wg.Wait()
}

// extractArtifacts writes the package's binary artifacts under dir,
// refusing paths that would escape it.
func extractArtifacts(pkg *model.BackupPackage, dir string) error {
	if len(pkg.Artifacts) == 0 {
		return nil
	}
	if dir == "" {
		return fmt.Errorf("package carries artifacts but no artifact directory is configured")
	}
	for rel, data := range pkg.Artifacts {
		clean := filepath.Clean(filepath.FromSlash(rel))
		if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
			return fmt.Errorf("artifact path %q escapes the artifact directory", rel)
		}
		dst := filepath.Join(dir, clean)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return fmt.Errorf("write artifact %s: %w", rel, err)
		}
	}
	return nil
}

// finish settles the session status, persists the report and notifies.
func (s *Service) finish(sess *Session, v *Validation, runErr error) (*Report, error) {
	defer sess.markDone()
	sess.FinishedAt = time.Now().UTC()

	switch {
	case runErr == nil:
		st := StatusCompleted
		for _, r := range sess.Results() {
			if r.Outcome == OutcomeFailed || r.Outcome == OutcomeSkipped {
				st = StatusPartial
				break
			}
		}
		sess.SetStatus(st)
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		// Interrupted runs keep whatever committed.
		sess.SetStatus(StatusPartial)
	default:
		sess.SetStatus(StatusFailed)
	}

	report := sess.BuildReport(v)
	s.persist(sess, report)
	s.notifier.Notify(notify.Event{
		SessionID: sess.ID,
		Status:    string(sess.Status()),
		Summary:   fmt.Sprintf("%d records, completeness %.2f", report.TotalRecords, report.Completeness),
	})
	if runErr != nil && sess.Status() == StatusFailed {
		return report, runErr
	}
	return report, nil
}

func sqlTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func (s *Service) persist(sess *Session, report *Report) {
	strategy := StrategyEnhanced
	for _, r := range sess.Results() {
		switch r.Strategy {
		case StrategyRaw:
			strategy = StrategyRaw
		case StrategyDirect:
			if strategy != StrategyRaw {
				strategy = StrategyDirect
			}
		}
	}
	body, err := json.Marshal(report)
	if err != nil {
		logging.Errorf("restore session %s: marshal report: %v", sess.ID, err)
		return
	}
	m := &db.RestoreSessionModel{
		ID:           sess.ID,
		KeyFormat:    sess.KeyFormat,
		Scenario:     string(sess.Scenario),
		StrategyUsed: string(strategy),
		Status:       string(sess.Status()),
		StartedAt:    sess.StartedAt,
		FinishedAt:   sqlTime(sess.FinishedAt),
		ReportJSON:   string(body),
	}
	if err := s.store.SaveRestoreSession(m); err != nil {
		logging.Errorf("restore session %s: persist: %v", sess.ID, err)
	}
	detail := fmt.Sprintf("session %s finished status=%s records=%d", sess.ID, sess.Status(), report.TotalRecords)
	if err := s.store.LogAction("restore", detail); err != nil {
		logging.Debugf("restore session %s: audit: %v", sess.ID, err)
	}
}
