// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

// Package backup produces portable snapshot packages from a destination
// store and reads them back for the restore engine. The canonical package
// format references every related entity by natural key; surrogate ids are
// carried only as informational legacy ids.
package backup

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jinkaiteo/edms-sub000/internal/db"
	"github.com/jinkaiteo/edms-sub000/internal/model"
)

// Export reads every backup-eligible table from the store and builds an
// in-memory package in the natural-key format.
func Export(st db.Store, sourceSystem string) (*model.BackupPackage, error) {
	pkg := &model.BackupPackage{
		Records: make(map[string][]model.ExportedRecord),
	}

	roles, err := st.GetAllRoles()
	if err != nil {
		return nil, fmt.Errorf("export roles: %w", err)
	}
	states, err := st.GetAllWorkflowStates()
	if err != nil {
		return nil, fmt.Errorf("export workflow states: %w", err)
	}
	docTypes, err := st.GetAllDocumentTypes()
	if err != nil {
		return nil, fmt.Errorf("export document types: %w", err)
	}
	users, err := st.GetAllUsers()
	if err != nil {
		return nil, fmt.Errorf("export users: %w", err)
	}
	userRoles, err := st.GetAllUserRoles()
	if err != nil {
		return nil, fmt.Errorf("export user roles: %w", err)
	}
	docs, err := st.GetAllDocuments()
	if err != nil {
		return nil, fmt.Errorf("export documents: %w", err)
	}
	versions, err := st.GetAllDocumentVersions()
	if err != nil {
		return nil, fmt.Errorf("export document versions: %w", err)
	}

	// Id-to-natural-key maps so reference fields can be written by key.
	roleNames := make(map[int64]string, len(roles))
	for _, r := range roles {
		roleNames[r.ID] = r.Name
	}
	stateCodes := make(map[int64]string, len(states))
	for _, s := range states {
		stateCodes[s.ID] = s.Code
	}
	typeCodes := make(map[int64]string, len(docTypes))
	for _, t := range docTypes {
		typeCodes[t.ID] = t.Code
	}
	usernames := make(map[int64]string, len(users))
	for _, u := range users {
		usernames[u.ID] = u.Username
	}
	docNumbers := make(map[int64]string, len(docs))
	for _, d := range docs {
		docNumbers[d.ID] = d.Number
	}

	for _, r := range roles {
		pkg.Records[model.TypeRoles] = append(pkg.Records[model.TypeRoles], model.ExportedRecord{
			ModelType:  model.TypeRoles,
			NaturalKey: []string{r.Name},
			LegacyID:   r.ID,
			Fields:     map[string]model.FieldValue{"name": model.Lit(r.Name)},
		})
	}
	for _, s := range states {
		pkg.Records[model.TypeWorkflowStates] = append(pkg.Records[model.TypeWorkflowStates], model.ExportedRecord{
			ModelType:  model.TypeWorkflowStates,
			NaturalKey: []string{s.Code},
			LegacyID:   s.ID,
			Fields: map[string]model.FieldValue{
				"code":  model.Lit(s.Code),
				"label": model.Lit(s.Label),
			},
		})
	}
	for _, t := range docTypes {
		pkg.Records[model.TypeDocumentTypes] = append(pkg.Records[model.TypeDocumentTypes], model.ExportedRecord{
			ModelType:  model.TypeDocumentTypes,
			NaturalKey: []string{t.Code},
			LegacyID:   t.ID,
			Fields: map[string]model.FieldValue{
				"code": model.Lit(t.Code),
				"name": model.Lit(t.Name),
			},
		})
	}
	for _, u := range users {
		pkg.Records[model.TypeUsers] = append(pkg.Records[model.TypeUsers], model.ExportedRecord{
			ModelType:  model.TypeUsers,
			NaturalKey: []string{u.Username},
			LegacyID:   u.ID,
			Fields: map[string]model.FieldValue{
				"username":     model.Lit(u.Username),
				"display_name": model.Lit(u.DisplayName),
				"email":        model.Lit(u.Email),
				"is_admin":     model.Lit(u.IsAdmin),
				"is_active":    model.Lit(u.IsActive),
			},
		})
	}
	for _, ur := range userRoles {
		uname, ok := usernames[ur.UserID]
		if !ok {
			continue // orphaned assignment; nothing to reference it by
		}
		rname, ok := roleNames[ur.RoleID]
		if !ok {
			continue
		}
		pkg.Records[model.TypeUserRoles] = append(pkg.Records[model.TypeUserRoles], model.ExportedRecord{
			ModelType:  model.TypeUserRoles,
			NaturalKey: []string{uname, rname},
			Fields: map[string]model.FieldValue{
				"user": model.RefTo(model.TypeUsers, uname),
				"role": model.RefTo(model.TypeRoles, rname),
			},
		})
	}
	for _, d := range docs {
		fields := map[string]model.FieldValue{
			"number": model.Lit(d.Number),
			"title":  model.Lit(d.Title),
		}
		if code, ok := typeCodes[d.DocTypeID]; ok {
			fields["doc_type"] = model.RefTo(model.TypeDocumentTypes, code)
		}
		if uname, ok := usernames[d.AuthorID]; ok {
			fields["author"] = model.RefTo(model.TypeUsers, uname)
		}
		if code, ok := stateCodes[d.StateID]; ok {
			fields["state"] = model.RefTo(model.TypeWorkflowStates, code)
		}
		if num, ok := docNumbers[d.SupersededByID]; ok && d.SupersededByID != 0 {
			fields["superseded_by"] = model.RefTo(model.TypeDocuments, num)
		}
		if !d.CreatedAt.IsZero() {
			fields["created_at"] = model.Lit(d.CreatedAt.UTC().Format(time.RFC3339))
		}
		pkg.Records[model.TypeDocuments] = append(pkg.Records[model.TypeDocuments], model.ExportedRecord{
			ModelType:  model.TypeDocuments,
			NaturalKey: []string{d.Number},
			LegacyID:   d.ID,
			Fields:     fields,
		})
	}
	for _, v := range versions {
		num, ok := docNumbers[v.DocumentID]
		if !ok {
			continue
		}
		fields := map[string]model.FieldValue{
			"document":  model.RefTo(model.TypeDocuments, num),
			"seq":       model.Lit(v.Seq),
			"file_path": model.Lit(v.FilePath),
			"checksum":  model.Lit(v.Checksum),
		}
		if uname, ok := usernames[v.CreatedByID]; ok {
			fields["created_by"] = model.RefTo(model.TypeUsers, uname)
		}
		if !v.CreatedAt.IsZero() {
			fields["created_at"] = model.Lit(v.CreatedAt.UTC().Format(time.RFC3339))
		}
		pkg.Records[model.TypeDocumentVersions] = append(pkg.Records[model.TypeDocumentVersions], model.ExportedRecord{
			ModelType:  model.TypeDocumentVersions,
			NaturalKey: []string{num, strconv.Itoa(v.Seq)},
			LegacyID:   v.ID,
			Fields:     fields,
		})
	}

	var types []string
	for _, ti := range model.AllTypes() {
		if len(pkg.Records[ti.Name]) > 0 {
			types = append(types, ti.Name)
		}
	}
	pkg.Manifest = model.Manifest{
		FormatVersion: model.ManifestVersion,
		KeyFormat:     model.KeyFormatNatural,
		CreatedAt:     time.Now().UTC(),
		SourceSystem:  sourceSystem,
		ModelTypes:    types,
		Checksums:     map[string]string{},
	}
	return pkg, nil
}
