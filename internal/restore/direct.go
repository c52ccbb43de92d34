// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package restore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jinkaiteo/edms-sub000/internal/db"
	"github.com/jinkaiteo/edms-sub000/internal/logging"
)

// runDirect is the first fallback for critical records the enhanced path
// left unresolved. It inserts with a reduced column set: fields whose
// references resolved are kept, unresolved nullable references are simply
// omitted and the row is flagged partial. Records it cannot place are
// returned for the raw path; the deferred patches of rows it creates are
// returned for the second pass.
func (e *enhancedRun) runDirect(ctx context.Context, work []recWork) ([]recWork, []deferredPatch, error) {
	var remaining []recWork
	var patches []deferredPatch
	for _, w := range work {
		if err := ctx.Err(); err != nil {
			return remaining, patches, err
		}
		sp := e.nextSavepoint()
		if err := db.Savepoint(ctx, e.tx, sp); err != nil {
			return remaining, patches, err
		}
		id, ierr := db.InsertByTypeBun(ctx, e.tx, w.rec.ModelType, w.cols)
		if ierr != nil {
			_ = db.RollbackToSavepoint(ctx, e.tx, sp)
			_ = db.ReleaseSavepoint(ctx, e.tx, sp)
			if errors.Is(ierr, db.ErrDuplicate) {
				if r, lerr := e.res.Resolve(ctx, w.rec.ModelType, w.rec.NaturalKey, false, nil); lerr == nil && r.OK {
					e.sess.Record(RecordResult{
						ModelType: w.rec.ModelType, NaturalKey: w.rec.NaturalKey,
						Outcome: OutcomeLinkedExisting, Strategy: StrategyDirect,
					})
					continue
				}
			}
			logging.Debugf("restore: direct insert failed for %s: %v", w.rec.String(), ierr)
			w.lastErr = ierr
			remaining = append(remaining, w)
			continue
		}
		if err := db.ReleaseSavepoint(ctx, e.tx, sp); err != nil {
			return remaining, patches, err
		}
		if id != 0 {
			e.sess.Index.Put(w.rec.ModelType, w.rec.NaturalKey, id)
		}
		patches = append(patches, w.patches...)
		e.sess.Record(RecordResult{
			ModelType: w.rec.ModelType, NaturalKey: w.rec.NaturalKey,
			Outcome: OutcomeCreated, Strategy: StrategyDirect, Partial: true,
			Detail: "materialized without: " + fmt.Sprint(w.missing),
		})
	}
	return remaining, patches, nil
}
