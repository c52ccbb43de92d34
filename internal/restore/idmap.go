// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package restore

import "sync"

// IdentifierMapping maps legacy surrogate identifiers (as carried in a
// snapshot) to the identifiers the same natural key holds in the destination
// after a reset. Entries are one-directional and scoped to a single session.
type IdentifierMapping struct {
	mu sync.RWMutex
	m  map[string]map[string]int64 // model type -> legacy id -> current id
}

// NewIdentifierMapping returns an empty session-scoped mapping.
func NewIdentifierMapping() *IdentifierMapping {
	return &IdentifierMapping{m: map[string]map[string]int64{}}
}

// Put records a legacy-to-current mapping. Once set, every later lookup of
// the same legacy identifier in this session resolves identically; the first
// write wins.
func (im *IdentifierMapping) Put(modelType, legacyID string, currentID int64) {
	im.mu.Lock()
	defer im.mu.Unlock()
	byType := im.m[modelType]
	if byType == nil {
		byType = map[string]int64{}
		im.m[modelType] = byType
	}
	if _, exists := byType[legacyID]; !exists {
		byType[legacyID] = currentID
	}
}

// Get resolves a legacy identifier to its current destination identifier.
func (im *IdentifierMapping) Get(modelType, legacyID string) (int64, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	id, ok := im.m[modelType][legacyID]
	return id, ok
}

// Len reports the number of entries for a model type.
func (im *IdentifierMapping) Len(modelType string) int {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return len(im.m[modelType])
}
