package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestIsTerminalStatus(t *testing.T) {
	for _, code := range []string{"CLOSE_WON", "close_lost"} {
		if !IsTerminalStatus(code) {
			t.Fatalf("expected %s to be terminal", code)
		}
	}
	for _, code := range []string{"", "NEW", "WARM"} {
		if IsTerminalStatus(code) {
			t.Fatalf("expected %s to be non-terminal", code)
		}
	}
}

func TestParseDimension(t *testing.T) {
	cases := map[string]Dimension{
		"stage":        DimensionStage,
		"statuses":     DimensionStatus,
		"sub-status":   DimensionSubStatus,
		"sub_statuses": DimensionSubStatus,
	}
	for raw, want := range cases {
		got, ok := ParseDimension(raw)
		if !ok || got != want {
			t.Fatalf("ParseDimension(%q) = %q, %v", raw, got, ok)
		}
	}
	if _, ok := ParseDimension("priority"); ok {
		t.Fatal("expected unknown dimension to be rejected")
	}
}

func TestLeadPointer(t *testing.T) {
	var lead Lead
	id := uuid.New()
	lead.SetPointer(DimensionSubStatus, &id)
	if lead.Pointer(DimensionSubStatus) == nil || *lead.Pointer(DimensionSubStatus) != id {
		t.Fatal("sub-status pointer not set")
	}
	if lead.Pointer(DimensionStage) != nil {
		t.Fatal("stage pointer should be untouched")
	}
}
