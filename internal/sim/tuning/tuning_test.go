package tuning

import (
	"os"
	"path/filepath"
	"testing"

	"tentscape.ai/internal/sim/world/logic/movement"
)

func TestLoadRepoConfig(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != Defaults() {
		t.Fatalf("configs/tuning.yaml drifted from Defaults():\n got=%+v\nwant=%+v", got, Defaults())
	}
	if got.MovementParams() != movement.DefaultParams() {
		t.Fatalf("movement params mismatch: %+v", got.MovementParams())
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("tick_rate_hz: 30\nmovement:\n  friend_speed: 0.05\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.TickRateHz != 30 {
		t.Fatalf("tick rate: got %d", got.TickRateHz)
	}
	if got.StaffCount != 50 {
		t.Fatalf("staff count default lost: %d", got.StaffCount)
	}
	p := got.MovementParams()
	if p.FriendSpeed != 0.05 || p.StaffSpeed != 0.03 {
		t.Fatalf("movement params: %+v", p)
	}
}

func TestLoadRejectsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("movement:\n  retrigger_chance: 2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for retrigger_chance > 1")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
