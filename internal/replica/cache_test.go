package replica

import (
	"testing"

	"github.com/taller-labs/fieldservice/internal/events"
)

func change(ticketID string, fields map[string]any) events.TicketChange {
	return events.TicketChange{TicketID: ticketID, Fields: fields}
}

func TestApplyRemoteBuildsRow(t *testing.T) {
	cache := NewCache()
	cache.ApplyRemote(change("tkt-1", map[string]any{"status": "asignado", "technician_id": "tech-1"}))
	cache.ApplyRemote(change("tkt-1", map[string]any{"status": "en_camino"}))

	row, ok := cache.Snapshot("tkt-1")
	if !ok {
		t.Fatal("row missing")
	}
	if row["status"] != "en_camino" || row["technician_id"] != "tech-1" {
		t.Fatalf("row = %+v", row)
	}
}

func TestPendingLocalFieldWins(t *testing.T) {
	cache := NewCache()
	cache.ApplyRemote(change("tkt-1", map[string]any{"status": "asignado", "diagnosis": ""}))

	cache.StageLocal("tkt-1", map[string]any{"diagnosis": "fuga en el circuito"})

	// An echoed remote update must not clobber the in-flight edit, but
	// unrelated fields still merge.
	cache.ApplyRemote(change("tkt-1", map[string]any{"diagnosis": "", "status": "en_diagnostico"}))

	row, _ := cache.Snapshot("tkt-1")
	if row["diagnosis"] != "fuga en el circuito" {
		t.Fatalf("pending local field overwritten: %v", row["diagnosis"])
	}
	if row["status"] != "en_diagnostico" {
		t.Fatalf("non-pending field not merged: %v", row["status"])
	}
}

func TestAcknowledgeReleasesField(t *testing.T) {
	cache := NewCache()
	cache.StageLocal("tkt-1", map[string]any{"diagnosis": "local", "supplier_name": "local"})

	if got := len(cache.PendingFields("tkt-1")); got != 2 {
		t.Fatalf("pending = %d, want 2", got)
	}

	cache.Acknowledge("tkt-1", "diagnosis")
	cache.ApplyRemote(change("tkt-1", map[string]any{"diagnosis": "remote", "supplier_name": "remote"}))

	row, _ := cache.Snapshot("tkt-1")
	if row["diagnosis"] != "remote" {
		t.Fatalf("acknowledged field must accept remote: %v", row["diagnosis"])
	}
	if row["supplier_name"] != "local" {
		t.Fatalf("still-pending field must keep local: %v", row["supplier_name"])
	}
}

func TestAcknowledgeAllFields(t *testing.T) {
	cache := NewCache()
	cache.StageLocal("tkt-1", map[string]any{"a": 1, "b": 2})
	cache.Acknowledge("tkt-1")
	if got := len(cache.PendingFields("tkt-1")); got != 0 {
		t.Fatalf("pending = %d, want 0", got)
	}
	cache.ApplyRemote(change("tkt-1", map[string]any{"a": 9}))
	row, _ := cache.Snapshot("tkt-1")
	if row["a"] != 9 {
		t.Fatalf("remote must win after full acknowledge: %v", row["a"])
	}
}

func TestSnapshotIsolation(t *testing.T) {
	cache := NewCache()
	cache.ApplyRemote(change("tkt-1", map[string]any{"status": "solicitado"}))

	row, _ := cache.Snapshot("tkt-1")
	row["status"] = "mutated"

	fresh, _ := cache.Snapshot("tkt-1")
	if fresh["status"] != "solicitado" {
		t.Fatal("snapshot must be a copy")
	}

	if _, ok := cache.Snapshot("missing"); ok {
		t.Fatal("unknown ticket must report absence")
	}
}
