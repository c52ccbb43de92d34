// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package restore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/uptrace/bun"

	"github.com/jinkaiteo/edms-sub000/internal/db"
	"github.com/jinkaiteo/edms-sub000/internal/logging"
	"github.com/jinkaiteo/edms-sub000/internal/model"
)

// recWork carries a record the enhanced path could not fully materialize,
// together with whatever did resolve, for the fallback chain.
type recWork struct {
	rec     model.ExportedRecord
	cols    map[string]any
	missing []string
	// patches are the record's deferred cyclic references; they survive
	// into the fallback chain so a row materialized there still gets its
	// second-pass patch.
	patches []deferredPatch
	lastErr error
}

// deferredPatch is a cyclic reference scheduled for the second pass.
type deferredPatch struct {
	modelType string
	key       []string
	column    string
	ref       model.ForeignKeyReference
}

// enhancedRun is the primary restore path: single forward pass in
// dependency order, per-record savepoints, fail-closed reference
// resolution.
type enhancedRun struct {
	tx        bun.Tx
	res       *Resolver
	sess      *Session
	pkg       *model.BackupPackage
	spCounter int
}

func newEnhancedRun(tx bun.Tx, res *Resolver, sess *Session, pkg *model.BackupPackage) *enhancedRun {
	return &enhancedRun{tx: tx, res: res.WithHandle(tx), sess: sess, pkg: pkg}
}

func (e *enhancedRun) nextSavepoint() string {
	e.spCounter++
	return fmt.Sprintf("sp_rec_%d", e.spCounter)
}

// buildIdentifierMapping handles reduced-scenario step one: every snapshot
// record of a reset-preserved type is resolved against the destination and
// its legacy identifier registered, before any other model type is touched.
func (e *enhancedRun) buildIdentifierMapping(ctx context.Context) error {
	for _, ti := range model.PreservedTypes() {
		for i := range e.pkg.RecordsFor(ti.Name) {
			rec := e.pkg.Records[ti.Name][i]
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := e.res.Resolve(ctx, ti.Name, rec.NaturalKey, true, &rec)
			if err != nil {
				return fmt.Errorf("map preserved %s: %w", rec.String(), err)
			}
			if !r.OK {
				e.sess.Record(RecordResult{
					ModelType: ti.Name, NaturalKey: rec.NaturalKey,
					Outcome: OutcomeSkipped, Strategy: StrategyEnhanced,
					Detail: "no destination counterpart and creation not permitted",
				})
				continue
			}
			outcome := r.Outcome
			if rec.LegacyID != 0 {
				e.sess.IDMap.Put(ti.Name, strconv.FormatInt(rec.LegacyID, 10), r.ID)
				if outcome == OutcomeLinkedExisting && rec.LegacyID != r.ID {
					outcome = OutcomeRemapped
				}
			}
			e.sess.Record(RecordResult{
				ModelType: ti.Name, NaturalKey: rec.NaturalKey,
				Outcome: outcome, Strategy: StrategyEnhanced,
			})
		}
	}
	logging.Debugf("restore: identifier mapping built (%d roles, %d states, %d types)",
		e.sess.IDMap.Len(model.TypeRoles), e.sess.IDMap.Len(model.TypeWorkflowStates), e.sess.IDMap.Len(model.TypeDocumentTypes))
	return nil
}

// targetInPackage reports whether a deferred reference's target record is
// part of the package, i.e. will exist once the first pass completes.
func (e *enhancedRun) targetInPackage(ref model.ForeignKeyReference) bool {
	want := model.KeyString(ref.TargetNaturalKey)
	for _, rec := range e.pkg.RecordsFor(ref.TargetModelType) {
		if model.KeyString(rec.NaturalKey) == want {
			return true
		}
	}
	return false
}

// processModelType runs the forward pass over one model type. Records whose
// references all resolve are upserted by natural key; records with
// unresolved references are recorded skipped_unresolved and, for critical
// types, returned for the fallback chain.
func (e *enhancedRun) processModelType(ctx context.Context, typeName string, deferredFields []string) (fallback []recWork, patches []deferredPatch, err error) {
	ti, _ := model.TypeByName(typeName)
	isDeferred := func(field string) bool {
		for _, f := range deferredFields {
			if f == field {
				return true
			}
		}
		return false
	}

	for _, rec := range e.pkg.RecordsFor(typeName) {
		if err := ctx.Err(); err != nil {
			return fallback, patches, err
		}

		// Idempotence: a natural key already present links, never duplicates.
		if r, err := e.res.Resolve(ctx, typeName, rec.NaturalKey, false, nil); err != nil {
			return fallback, patches, err
		} else if r.OK {
			e.sess.Record(RecordResult{
				ModelType: typeName, NaturalKey: rec.NaturalKey,
				Outcome: OutcomeLinkedExisting, Strategy: StrategyEnhanced,
			})
			continue
		}

		cols := map[string]any{}
		var missing []string
		var recPatches []deferredPatch
		for field, fv := range rec.Fields {
			if fv.Ref == nil {
				cols[field] = fv.Literal
				continue
			}
			r, rerr := e.res.Resolve(ctx, fv.Ref.TargetModelType, fv.Ref.TargetNaturalKey, true, nil)
			if rerr != nil {
				return fallback, patches, rerr
			}
			if r.OK {
				cols[field+"_id"] = r.ID
				continue
			}
			if isDeferred(field) && e.targetInPackage(*fv.Ref) {
				recPatches = append(recPatches, deferredPatch{
					modelType: typeName, key: rec.NaturalKey, column: field + "_id", ref: *fv.Ref,
				})
				continue
			}
			missing = append(missing, field)
		}

		if len(missing) > 0 {
			e.sess.Record(RecordResult{
				ModelType: typeName, NaturalKey: rec.NaturalKey,
				Outcome: OutcomeSkipped, Strategy: StrategyEnhanced,
				Detail: "unresolved references: " + fmt.Sprint(missing),
			})
			if ti.Critical {
				fallback = append(fallback, recWork{rec: rec, cols: cols, missing: missing, patches: recPatches})
			}
			continue
		}

		sp := e.nextSavepoint()
		if err := db.Savepoint(ctx, e.tx, sp); err != nil {
			return fallback, patches, err
		}
		id, ierr := db.InsertByTypeBun(ctx, e.tx, typeName, cols)
		if ierr != nil {
			_ = db.RollbackToSavepoint(ctx, e.tx, sp)
			_ = db.ReleaseSavepoint(ctx, e.tx, sp)
			if errors.Is(ierr, db.ErrDuplicate) {
				// Conflict under the default policy links the existing row.
				if r, lerr := e.res.Resolve(ctx, typeName, rec.NaturalKey, false, nil); lerr == nil && r.OK {
					e.sess.Record(RecordResult{
						ModelType: typeName, NaturalKey: rec.NaturalKey,
						Outcome: OutcomeLinkedExisting, Strategy: StrategyEnhanced,
						Detail: (&ConflictError{ModelType: typeName, NaturalKey: rec.NaturalKey}).Error(),
					})
					continue
				}
			}
			e.sess.Record(RecordResult{
				ModelType: typeName, NaturalKey: rec.NaturalKey,
				Outcome: OutcomeSkipped, Strategy: StrategyEnhanced,
				Detail: ierr.Error(),
			})
			if ti.Critical {
				fallback = append(fallback, recWork{rec: rec, cols: cols, patches: recPatches, lastErr: ierr})
			}
			continue
		}
		if err := db.ReleaseSavepoint(ctx, e.tx, sp); err != nil {
			return fallback, patches, err
		}
		if id != 0 {
			e.sess.Index.Put(typeName, rec.NaturalKey, id)
		}
		patches = append(patches, recPatches...)
		e.sess.Record(RecordResult{
			ModelType: typeName, NaturalKey: rec.NaturalKey,
			Outcome: OutcomeCreated, Strategy: StrategyEnhanced,
		})
	}
	return fallback, patches, nil
}

// patchDeferred is the second pass for cycle participants: once every
// member of a cycle exists, the deferred references are patched in.
func (e *enhancedRun) patchDeferred(ctx context.Context, patches []deferredPatch) error {
	for _, p := range patches {
		if err := ctx.Err(); err != nil {
			return err
		}
		rowID, ok := e.sess.Index.Get(p.modelType, p.key)
		if !ok {
			continue // row itself never materialized; nothing to patch
		}
		r, err := e.res.Resolve(ctx, p.ref.TargetModelType, p.ref.TargetNaturalKey, false, nil)
		if err != nil {
			return err
		}
		if !r.OK {
			// Target fell out during the first pass. The link stays absent
			// and the row is flagged partial, never pointed at a fallback.
			e.sess.Record(RecordResult{
				ModelType: p.modelType, NaturalKey: p.key,
				Outcome: OutcomeCreated, Strategy: StrategyEnhanced, Partial: true,
				Detail: (&UnresolvedReferenceError{Field: p.column, Ref: p.ref}).Error(),
			})
			continue
		}
		if err := db.UpdateColumnBun(ctx, e.tx, p.modelType, rowID, p.column, r.ID); err != nil {
			return fmt.Errorf("patch %s[%s].%s: %w", p.modelType, model.FormatKey(p.key), p.column, err)
		}
	}
	return nil
}
