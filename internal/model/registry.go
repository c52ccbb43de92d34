// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package model

// Model type names as they appear in snapshot data files and in the
// per-type registry. These are also the destination table names.
const (
	TypeRoles            = "roles"
	TypeWorkflowStates   = "workflow_states"
	TypeDocumentTypes    = "document_types"
	TypeUsers            = "users"
	TypeUserRoles        = "user_roles"
	TypeDocuments        = "documents"
	TypeDocumentVersions = "document_versions"
)

// TypeInfo describes one backup-eligible model type: its natural key, its
// declared dependencies on other model types, and the restore policy flags
// the engine consults.
type TypeInfo struct {
	// Name is the model type identifier (and destination table name).
	Name string
	// KeyFields are the field names whose values form the natural key tuple.
	KeyFields []string
	// RefFields maps reference field names to the model type they target.
	RefFields map[string]string
	// DependsOn lists model types that must be restored first.
	DependsOn []string
	// ResetPreserved marks seed types whose natural key survives a
	// destination reset while the surrogate id is regenerated.
	ResetPreserved bool
	// Creatable allows the resolver to create a missing referenced entity
	// on demand.
	Creatable bool
	// Critical marks types eligible for the direct/raw fallback chain when
	// the enhanced path cannot fully resolve them.
	Critical bool
}

// registry holds the declared type descriptors in dependency-friendly
// declaration order. Order matters only as a tie-breaker; the restorer
// computes a proper topological order from DependsOn.
var registry = []TypeInfo{
	{
		Name:           TypeRoles,
		KeyFields:      []string{"name"},
		ResetPreserved: true,
	},
	{
		Name:           TypeWorkflowStates,
		KeyFields:      []string{"code"},
		ResetPreserved: true,
	},
	{
		Name:           TypeDocumentTypes,
		KeyFields:      []string{"code"},
		ResetPreserved: true,
	},
	{
		Name:      TypeUsers,
		KeyFields: []string{"username"},
		Creatable: true,
	},
	{
		Name:      TypeUserRoles,
		KeyFields: []string{"username", "role"},
		RefFields: map[string]string{"user": TypeUsers, "role": TypeRoles},
		DependsOn: []string{TypeUsers, TypeRoles},
		Creatable: true,
	},
	{
		Name:      TypeDocuments,
		KeyFields: []string{"number"},
		RefFields: map[string]string{
			"doc_type":      TypeDocumentTypes,
			"author":        TypeUsers,
			"state":         TypeWorkflowStates,
			"superseded_by": TypeDocuments,
		},
		DependsOn: []string{TypeDocumentTypes, TypeUsers, TypeWorkflowStates, TypeDocuments},
		Creatable: true,
		Critical:  true,
	},
	{
		Name:      TypeDocumentVersions,
		KeyFields: []string{"number", "seq"},
		RefFields: map[string]string{"document": TypeDocuments, "created_by": TypeUsers},
		DependsOn: []string{TypeDocuments, TypeUsers},
		Creatable: true,
		Critical:  true,
	},
}

// AllTypes returns descriptors for every backup-eligible model type in
// declaration order.
func AllTypes() []TypeInfo {
	out := make([]TypeInfo, len(registry))
	copy(out, registry)
	return out
}

// TypeByName looks up a descriptor by model type name.
func TypeByName(name string) (TypeInfo, bool) {
	for _, ti := range registry {
		if ti.Name == name {
			return ti, true
		}
	}
	return TypeInfo{}, false
}

// PreservedTypes returns the reset-preserved subset of the registry.
func PreservedTypes() []TypeInfo {
	var out []TypeInfo
	for _, ti := range registry {
		if ti.ResetPreserved {
			out = append(out, ti)
		}
	}
	return out
}
