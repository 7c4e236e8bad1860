package observerproto

import (
	"tentscape.ai/internal/sim/world/kernel/model"
	"tentscape.ai/internal/sim/world/terrain/gen"
)

// Version is the observer protocol version.
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeFrame     = "FRAME"
)

// Cadence limits for SUBSCRIBE.every_ticks.
const (
	DefaultEveryTicks = 6
	MaxEveryTicks     = 600
)

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	EveryTicks      int    `json:"every_ticks"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string `json:"protocol_version"`
	WorldID         string `json:"world_id"`
	Tick            uint64 `json:"tick"`
	TickRateHz      int    `json:"tick_rate_hz"`

	Role         model.Role `json:"role"`
	Generation   uint64     `json:"generation"`
	GenerationID string     `json:"generation_id"`

	Terrain *gen.Terrain  `json:"terrain"`
	POIs    []model.POI   `json:"pois"`
	Stages  []model.Stage `json:"stages"`

	// ShowStaffLabels tells render surfaces whether to draw staff name tags.
	ShowStaffLabels bool `json:"show_staff_labels"`
}

// Server -> Client. Sent every every_ticks ticks and whenever the population
// is regenerated.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Role         model.Role     `json:"role"`
	Generation   uint64         `json:"generation"`
	GenerationID string         `json:"generation_id"`
	Stages       []model.Stage  `json:"stages,omitempty"`
	Entities     []model.Entity `json:"entities"`
}
