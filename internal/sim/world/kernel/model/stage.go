package model

const (
	StageMain    = "MAIN"
	StageTent    = "TENT"
	StageOutdoor = "OUTDOOR"
)

// Stage is a performance venue. The simulation treats it as a read-only destination.
type Stage struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Type      string     `json:"type" yaml:"type"`
	Position  Coordinate `json:"position" yaml:"position"`
	CurrentDJ string     `json:"currentDJ" yaml:"currentDJ"`
	NextDJ    string     `json:"nextDJ" yaml:"nextDJ"`
	EndTime   string     `json:"endTime" yaml:"endTime"` // HH:MM
	Vibe      string     `json:"vibe" yaml:"vibe"`
}

func IsStageType(t string) bool {
	switch t {
	case StageMain, StageTent, StageOutdoor:
		return true
	}
	return false
}

// POI is a fixed point of interest drawn on the map.
type POI struct {
	Key      string     `json:"key"`
	Label    string     `json:"label"`
	Position Coordinate `json:"position"`
}

// Location is a destination candidate for entities: a stage or a POI.
type Location struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind"` // "STAGE" or "POI"
	Position Coordinate `json:"position"`
}
