package tracker

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"capatrack/internal/domain/lifecycle"
)

func TestExportHistoryCSV(t *testing.T) {
	svc := setupService(t)
	finding := createFinding(t, svc, "exportable finding")
	transition(t, svc, lifecycle.KindIssue, finding.FindingID, lifecycle.StatusInProgress)

	var buf bytes.Buffer
	if err := svc.ExportHistoryCSV(context.Background(), testTenant, &buf); err != nil {
		t.Fatalf("ExportHistoryCSV() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	// header + creation + transition
	if len(records) != 3 {
		t.Fatalf("csv rows = %d, want 3", len(records))
	}
	if records[0][0] != "entry_id" || records[0][5] != "new_status" {
		t.Fatalf("header = %v", records[0])
	}
	if records[1][4] != "" {
		t.Fatalf("creation previous_status = %q, want empty", records[1][4])
	}
	if records[2][4] != "open" || records[2][5] != "in_progress" {
		t.Fatalf("transition row = %v", records[2])
	}
}

func TestSeedFromTOML(t *testing.T) {
	svc := setupService(t)

	seedPath := filepath.Join(t.TempDir(), "seed.toml")
	content := `
tenant = "acme"
actor = "seed-bot"

[[findings]]
key = "f1"
title = "stale access reviews"

[[capas]]
key = "c1"
title = "review process"
finding = "f1"

  [[capas.tasks]]
  title = "define calendar"

  [[capas.tasks]]
  title = "run first review"

[[capas]]
key = "c2"
title = "standalone capa"
`
	if err := os.WriteFile(seedPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	result, err := svc.Seed(context.Background(), seedPath)
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if result.Findings != 1 || result.Capas != 2 || result.Tasks != 2 {
		t.Fatalf("Seed() = %+v", result)
	}

	findings, err := svc.ListFindings(context.Background(), "acme")
	if err != nil {
		t.Fatalf("list findings: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("findings = %d", len(findings))
	}

	detail, err := svc.GetFindingDetail(context.Background(), "acme", findings[0].FindingID)
	if err != nil {
		t.Fatalf("get finding detail: %v", err)
	}
	if len(detail.Capas) != 1 {
		t.Fatalf("linked capas = %d, want 1", len(detail.Capas))
	}
}

func TestSeedRejectsUnknownFindingKey(t *testing.T) {
	svc := setupService(t)

	seedPath := filepath.Join(t.TempDir(), "seed.toml")
	content := `
tenant = "acme"
actor = "seed-bot"

[[capas]]
title = "dangling"
finding = "missing"
`
	if err := os.WriteFile(seedPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	if _, err := svc.Seed(context.Background(), seedPath); err == nil {
		t.Fatalf("Seed() expected error for unknown finding key")
	}
}
