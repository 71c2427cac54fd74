package detector

import (
	"testing"

	"github.com/netsecsim/netsec-monitor/pkg/models"
)

func bestPath(prefix string) []models.RouteEntry {
	return []models.RouteEntry{{Prefix: prefix, NextHop: "172.20.0.50", Best: true}}
}

func TestEvaluate_Hijack(t *testing.T) {
	d := New([]models.AuthorizationRule{
		{Prefix: "8.8.8.0/24", Origins: []string{"as300"}},
	})

	events := d.Evaluate("as500", bestPath("8.8.8.0/24"), 3)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.Type != models.EventPrefixHijack {
		t.Errorf("Expected type %s, got %s", models.EventPrefixHijack, ev.Type)
	}
	if ev.Node != "as500" {
		t.Errorf("Expected offending node as500, got %s", ev.Node)
	}
	if ev.Prefix != "8.8.8.0/24" {
		t.Errorf("Expected prefix 8.8.8.0/24, got %s", ev.Prefix)
	}
	if ev.Cycle != 3 {
		t.Errorf("Expected cycle 3, got %d", ev.Cycle)
	}
}

func TestEvaluate_AuthorizedOrigin(t *testing.T) {
	d := New([]models.AuthorizationRule{
		{Prefix: "8.8.8.0/24", Origins: []string{"as300"}},
	})

	if events := d.Evaluate("as300", bestPath("8.8.8.0/24"), 1); len(events) != 0 {
		t.Errorf("Authorized origin must not be flagged, got %d events", len(events))
	}
}

func TestEvaluate_UnmonitoredPrefix(t *testing.T) {
	d := New([]models.AuthorizationRule{
		{Prefix: "8.8.8.0/24", Origins: []string{"as300"}},
	})

	if events := d.Evaluate("as500", bestPath("10.100.0.0/24"), 1); len(events) != 0 {
		t.Errorf("Unmonitored prefix must not be flagged, got %d events", len(events))
	}
}

func TestEvaluate_NoAuthorizedOrigin(t *testing.T) {
	// An empty origin list means any origination is suspect.
	d := New([]models.AuthorizationRule{
		{Prefix: "8.8.8.0/24"},
	})

	for _, node := range []string{"as100", "as300", "as500"} {
		if events := d.Evaluate(node, bestPath("8.8.8.0/24"), 1); len(events) != 1 {
			t.Errorf("%s: expected 1 event with no authorized origin, got %d", node, len(events))
		}
	}
}

func TestEvaluate_NonBestIgnored(t *testing.T) {
	d := New([]models.AuthorizationRule{
		{Prefix: "8.8.8.0/24", Origins: []string{"as300"}},
	})

	routes := []models.RouteEntry{{Prefix: "8.8.8.0/24", Best: false}}
	if events := d.Evaluate("as500", routes, 1); len(events) != 0 {
		t.Errorf("Non-best routes must not be flagged, got %d events", len(events))
	}
}

func TestEvaluate_RepeatedCycles(t *testing.T) {
	d := New([]models.AuthorizationRule{
		{Prefix: "8.8.8.0/24", Origins: []string{"as300"}},
	})

	// Stateless per cycle: the event re-appears while the condition persists.
	for cycle := uint64(1); cycle <= 3; cycle++ {
		events := d.Evaluate("as500", bestPath("8.8.8.0/24"), cycle)
		if len(events) != 1 {
			t.Fatalf("Cycle %d: expected 1 event, got %d", cycle, len(events))
		}
		if events[0].Cycle != cycle {
			t.Errorf("Cycle %d: event tagged with cycle %d", cycle, events[0].Cycle)
		}
	}
}

func TestMonitored(t *testing.T) {
	d := New([]models.AuthorizationRule{
		{Prefix: "8.8.8.0/24", Origins: []string{"as300"}},
	})

	if !d.Monitored("8.8.8.0/24") {
		t.Error("Expected 8.8.8.0/24 to be monitored")
	}
	if d.Monitored("10.0.0.0/8") {
		t.Error("Expected 10.0.0.0/8 to be unmonitored")
	}
}
