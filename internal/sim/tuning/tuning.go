package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tentscape.ai/internal/sim/world/logic/movement"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int `yaml:"tick_rate_hz"`
	StaffCount int `yaml:"staff_count"`

	Movement Movement `yaml:"movement"`

	// Observability cadence, in ticks.
	FrameLogEveryTicks    int `yaml:"frame_log_every_ticks"`
	TickStatsEveryTicks   int `yaml:"tick_stats_every_ticks"`
	ObserverDefaultEvery  int `yaml:"observer_default_every_ticks"`
	ObserverMaxEveryTicks int `yaml:"observer_max_every_ticks"`
	LogRotateEveryMinutes int `yaml:"log_rotate_every_minutes"`
}

type Movement struct {
	StaffSpeed       float64 `yaml:"staff_speed"`
	FriendSpeed      float64 `yaml:"friend_speed"`
	ArrivalRadius    float64 `yaml:"arrival_radius"`
	RetriggerChance  float64 `yaml:"retrigger_chance"`
	TargetJitterSpan float64 `yaml:"target_jitter_span"`
	BridgeHalfWidth  float64 `yaml:"bridge_half_width"`
	RepelBand        float64 `yaml:"repel_band"`
	RepelPush        float64 `yaml:"repel_push"`
}

func Defaults() Tuning {
	p := movement.DefaultParams()
	return Tuning{
		ProtocolVersion: "0.1",
		TickRateHz:      60,
		StaffCount:      50,
		Movement: Movement{
			StaffSpeed:       p.StaffSpeed,
			FriendSpeed:      p.FriendSpeed,
			ArrivalRadius:    p.ArrivalRadius,
			RetriggerChance:  p.RetriggerChance,
			TargetJitterSpan: p.TargetJitterSpan,
			BridgeHalfWidth:  p.BridgeHalfWidth,
			RepelBand:        p.RepelBand,
			RepelPush:        p.RepelPush,
		},
		FrameLogEveryTicks:    6,
		TickStatsEveryTicks:   60,
		ObserverDefaultEvery:  6,
		ObserverMaxEveryTicks: 600,
		LogRotateEveryMinutes: 60,
	}
}

// Load reads path over Defaults(); keys missing from the file keep their
// default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz out of range: %d", t.TickRateHz)
	}
	if t.StaffCount < 0 || t.StaffCount > 10000 {
		return fmt.Errorf("staff_count out of range: %d", t.StaffCount)
	}
	if t.Movement.RetriggerChance < 0 || t.Movement.RetriggerChance > 1 {
		return fmt.Errorf("movement.retrigger_chance out of range: %v", t.Movement.RetriggerChance)
	}
	if t.ObserverMaxEveryTicks > 0 && t.ObserverDefaultEvery > t.ObserverMaxEveryTicks {
		return fmt.Errorf("observer_default_every_ticks %d exceeds observer_max_every_ticks %d", t.ObserverDefaultEvery, t.ObserverMaxEveryTicks)
	}
	return nil
}

// MovementParams converts the yaml block into stepper parameters. Zero values
// fall back to the stepper defaults.
func (t Tuning) MovementParams() movement.Params {
	return movement.Params{
		StaffSpeed:       t.Movement.StaffSpeed,
		FriendSpeed:      t.Movement.FriendSpeed,
		ArrivalRadius:    t.Movement.ArrivalRadius,
		RetriggerChance:  t.Movement.RetriggerChance,
		TargetJitterSpan: t.Movement.TargetJitterSpan,
		BridgeHalfWidth:  t.Movement.BridgeHalfWidth,
		RepelBand:        t.Movement.RepelBand,
		RepelPush:        t.Movement.RepelPush,
	}.Normalize()
}
