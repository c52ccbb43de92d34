// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package restore

import (
	"context"
	"sync"

	"github.com/uptrace/bun"

	"github.com/jinkaiteo/edms-sub000/internal/db"
	"github.com/jinkaiteo/edms-sub000/internal/model"
)

// NaturalKeyIndex caches natural-key resolutions for one session. It is
// partitioned by model type so tier-parallel workers contend only on the
// types they actually touch.
type NaturalKeyIndex struct {
	mu    sync.Mutex
	parts map[string]*indexPartition
}

type indexPartition struct {
	mu sync.RWMutex
	m  map[string]int64
}

// NewNaturalKeyIndex returns an empty session-scoped index.
func NewNaturalKeyIndex() *NaturalKeyIndex {
	return &NaturalKeyIndex{parts: map[string]*indexPartition{}}
}

func (ix *NaturalKeyIndex) part(modelType string) *indexPartition {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	p := ix.parts[modelType]
	if p == nil {
		p = &indexPartition{m: map[string]int64{}}
		ix.parts[modelType] = p
	}
	return p
}

// Get returns the cached destination id for a natural key.
func (ix *NaturalKeyIndex) Get(modelType string, key []string) (int64, bool) {
	p := ix.part(modelType)
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.m[model.KeyString(key)]
	return id, ok
}

// Put caches a resolution. Newly assigned ids are registered here
// immediately so later records in the same pass resolve against them.
func (ix *NaturalKeyIndex) Put(modelType string, key []string, id int64) {
	p := ix.part(modelType)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[model.KeyString(key)] = id
}

// Resolution is the resolver's answer for one natural key. OK is false when
// the key could not be resolved; callers must handle that explicitly.
type Resolution struct {
	ID      int64
	Outcome Outcome
	OK      bool
}

// Policy holds the restore policy knobs consulted during resolution.
type Policy struct {
	// CreateMissingUsers allows fabricating an inactive placeholder user
	// for a referenced username absent from both package and destination.
	CreateMissingUsers bool
	// CreateMissingPreserved allows creating reset-preserved seed entities
	// that have no counterpart in the destination.
	CreateMissingPreserved bool
}

// Resolver resolves natural keys against one destination handle using the
// session's caches. It never errors on a plain miss; a miss without
// create-permission yields an unresolved Resolution.
type Resolver struct {
	idb    bun.IDB
	index  *NaturalKeyIndex
	idmap  *IdentifierMapping
	policy Policy
}

// NewResolver builds a resolver bound to a destination handle and the
// session's caches.
func NewResolver(idb bun.IDB, sess *Session, policy Policy) *Resolver {
	return &Resolver{idb: idb, index: sess.Index, idmap: sess.IDMap, policy: policy}
}

// WithHandle returns a resolver identical to r but bound to a different
// destination handle (e.g., the session transaction instead of the pool).
func (r *Resolver) WithHandle(idb bun.IDB) *Resolver {
	return &Resolver{idb: idb, index: r.index, idmap: r.idmap, policy: r.policy}
}

// Resolve maps (modelType, naturalKey) to a destination id.
//
// Order of consultation: the identifier mapping (reset-preserved types
// only), the session index, the destination store, and finally on-demand
// creation when createIfMissing is set and policy allows. rec, when
// non-nil, supplies the literal fields a created row is built from.
func (r *Resolver) Resolve(ctx context.Context, modelType string, key []string, createIfMissing bool, rec *model.ExportedRecord) (Resolution, error) {
	ti, ok := model.TypeByName(modelType)
	if !ok {
		return Resolution{}, &UnresolvedReferenceError{Ref: model.ForeignKeyReference{TargetModelType: modelType, TargetNaturalKey: key}}
	}

	// Reset-preserved types consult the identifier mapping first: a legacy
	// identifier already mapped resolves directly, without a fresh lookup.
	if ti.ResetPreserved && len(key) == 1 {
		if id, ok := r.idmap.Get(modelType, key[0]); ok {
			return Resolution{ID: id, Outcome: OutcomeRemapped, OK: true}, nil
		}
	}

	if id, ok := r.index.Get(modelType, key); ok {
		return Resolution{ID: id, Outcome: OutcomeLinkedExisting, OK: true}, nil
	}

	id, found, err := db.LookupNaturalKeyBun(ctx, r.idb, modelType, key)
	if err != nil {
		return Resolution{}, err
	}
	if found {
		r.index.Put(modelType, key, id)
		return Resolution{ID: id, Outcome: OutcomeLinkedExisting, OK: true}, nil
	}

	if !createIfMissing || !r.allowCreate(ti) {
		return Resolution{}, nil // unresolved; caller decides
	}

	fields := minimalFields(ti, key, rec)
	if fields == nil {
		return Resolution{}, nil
	}
	newID, err := db.InsertByTypeBun(ctx, r.idb, modelType, fields)
	if err != nil {
		if db.MapDBError(err) == db.ErrDuplicate {
			// Lost a race with another worker; link the existing row.
			id, found, lerr := db.LookupNaturalKeyBun(ctx, r.idb, modelType, key)
			if lerr == nil && found {
				r.index.Put(modelType, key, id)
				return Resolution{ID: id, Outcome: OutcomeLinkedExisting, OK: true}, nil
			}
		}
		return Resolution{}, err
	}
	r.index.Put(modelType, key, newID)
	return Resolution{ID: newID, Outcome: OutcomeCreated, OK: true}, nil
}

func (r *Resolver) allowCreate(ti model.TypeInfo) bool {
	if ti.ResetPreserved {
		return r.policy.CreateMissingPreserved
	}
	if !ti.Creatable {
		return false
	}
	if ti.Name == model.TypeUsers {
		return r.policy.CreateMissingUsers
	}
	return true
}

// minimalFields builds the smallest valid column map for an on-demand
// creation. With a source record its literal fields are used; without one,
// only types whose natural key fully determines a valid row can be built.
func minimalFields(ti model.TypeInfo, key []string, rec *model.ExportedRecord) map[string]any {
	if rec != nil {
		fields := map[string]any{}
		for name, fv := range rec.Fields {
			if fv.Ref == nil {
				fields[name] = fv.Literal
			}
		}
		if len(fields) > 0 {
			return fields
		}
	}
	switch ti.Name {
	case model.TypeRoles:
		return map[string]any{"name": key[0]}
	case model.TypeWorkflowStates:
		return map[string]any{"code": key[0], "label": key[0]}
	case model.TypeDocumentTypes:
		return map[string]any{"code": key[0], "name": key[0]}
	case model.TypeUsers:
		// Placeholder users are created inactive and unprivileged.
		return map[string]any{"username": key[0], "is_admin": false, "is_active": false}
	}
	// Composite-key types carry reference fields and cannot be fabricated
	// from a bare key.
	return nil
}
