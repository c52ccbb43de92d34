// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jinkaiteo/edms-sub000/internal/restore"
)

func sampleReport() *restore.Report {
	return &restore.Report{
		SessionID:    "11111111-2222-3333-4444-555555555555",
		KeyFormat:    "natural",
		Scenario:     restore.ScenarioReduced,
		Status:       restore.StatusPartial,
		StartedAt:    time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		TotalRecords: 3,
		PerType: map[string]restore.OutcomeCounts{
			"roles":      {restore.OutcomeRemapped: 1},
			"users":      {restore.OutcomeCreated: 1},
			"user_roles": {restore.OutcomeSkipped: 1},
		},
		Completeness: 2.0 / 3.0,
		Records: []restore.RecordResult{
			{ModelType: "user_roles", NaturalKey: []string{"bob", "Ghost"},
				Outcome: restore.OutcomeSkipped, Strategy: restore.StrategyEnhanced,
				Detail: "unresolved references: [role]"},
		},
	}
}

func TestRenderReport_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := renderReport(&buf, sampleReport(), "text"); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"partially-completed", "reduced", "remapped=1", "user_roles[bob/Ghost]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderReport_JSONRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := renderReport(&buf, sampleReport(), "json"); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	var got restore.Report
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if got.SessionID != "11111111-2222-3333-4444-555555555555" || got.TotalRecords != 3 {
		t.Fatalf("report fields lost: %+v", got)
	}
}

func TestRenderReport_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := renderReport(&buf, sampleReport(), "yaml"); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "session_id:") || !strings.Contains(out, "scenario: reduced") {
		t.Fatalf("yaml output unexpected:\n%s", out)
	}
}

func TestRenderValidation_Clean(t *testing.T) {
	var buf bytes.Buffer
	v := &restore.Validation{ArtifactsChecked: 2, Clean: true}
	if err := renderValidation(&buf, v, "text"); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "clean") {
		t.Fatalf("expected clean marker:\n%s", buf.String())
	}
}

func TestNewRootCmd_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	want := map[string]bool{"backup": false, "restore": false, "status": false, "sessions": false, "verify": false, "version": false}
	for _, sub := range cmd.Commands() {
		name := strings.Fields(sub.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("subcommand %s not registered", name)
		}
	}
}
