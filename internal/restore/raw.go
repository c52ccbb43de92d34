// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package restore

import (
	"context"
	"fmt"

	"github.com/jinkaiteo/edms-sub000/internal/db"
	"github.com/jinkaiteo/edms-sub000/internal/logging"
)

// runRaw is the last resort for critical records: a plain column-list
// insert that bypasses ORM mapping entirely. Whatever still fails here is
// recorded failed and the session moves on. Deferred patches of rows it
// places are returned for the second pass.
func (e *enhancedRun) runRaw(ctx context.Context, work []recWork) ([]deferredPatch, error) {
	var patches []deferredPatch
	for _, w := range work {
		if err := ctx.Err(); err != nil {
			return patches, err
		}
		sp := e.nextSavepoint()
		if err := db.Savepoint(ctx, e.tx, sp); err != nil {
			return patches, err
		}
		if ierr := db.RawInsertByTypeBun(ctx, e.tx, w.rec.ModelType, w.cols); ierr != nil {
			_ = db.RollbackToSavepoint(ctx, e.tx, sp)
			_ = db.ReleaseSavepoint(ctx, e.tx, sp)
			last := w.lastErr
			if last == nil {
				last = ierr
			}
			exhausted := &StrategyExhaustedError{Record: w.rec.String(), Last: last}
			logging.Warnf("restore: %v", exhausted)
			e.sess.Record(RecordResult{
				ModelType: w.rec.ModelType, NaturalKey: w.rec.NaturalKey,
				Outcome: OutcomeFailed, Strategy: StrategyRaw,
				Detail: exhausted.Error(),
			})
			continue
		}
		if err := db.ReleaseSavepoint(ctx, e.tx, sp); err != nil {
			return patches, err
		}
		// Raw inserts cannot surface the generated id portably, so the row
		// is re-resolved by natural key before it enters the index.
		if r, err := e.res.Resolve(ctx, w.rec.ModelType, w.rec.NaturalKey, false, nil); err == nil && r.OK && r.ID != 0 {
			e.sess.Index.Put(w.rec.ModelType, w.rec.NaturalKey, r.ID)
		}
		patches = append(patches, w.patches...)
		e.sess.Record(RecordResult{
			ModelType: w.rec.ModelType, NaturalKey: w.rec.NaturalKey,
			Outcome: OutcomeCreated, Strategy: StrategyRaw, Partial: true,
			Detail: "raw insert without: " + fmt.Sprint(w.missing),
		})
	}
	return patches, nil
}
