package catalogs

import "tentscape.ai/internal/sim/world/kernel/model"

// Fixed points of interest. They never move and are shared by every generation.
var (
	ToiletNorth = model.POI{Key: "TOILET_N", Label: "WC", Position: model.Pt(30, 25)}
	ToiletSouth = model.POI{Key: "TOILET_S", Label: "WC", Position: model.Pt(70, 80)}
	FoodCourt   = model.POI{Key: "FOOD_COURT", Label: "FOOD", Position: model.Pt(85, 40)}
	Camping     = model.POI{Key: "CAMPING", Label: "CAMP", Position: model.Pt(15, 15)}
	Entrance    = model.POI{Key: "ENTRANCE", Label: "GATE", Position: model.Pt(50, 95)}
	Medic       = model.POI{Key: "MEDIC", Label: "MEDIC", Position: model.Pt(45, 45)}
)

// POIs returns every point of interest in drawing order.
func POIs() []model.POI {
	return []model.POI{ToiletNorth, ToiletSouth, FoodCourt, Camping, Entrance, Medic}
}

// Destinations is the candidate pool entities walk between: every stage, then
// food, camp and both toilets. The entrance and medic tent are never targets.
func Destinations(stages []model.Stage) []model.Location {
	out := make([]model.Location, 0, len(stages)+4)
	for _, s := range stages {
		out = append(out, model.Location{ID: s.ID, Kind: "STAGE", Position: s.Position})
	}
	out = append(out,
		model.Location{ID: "food", Kind: "POI", Position: FoodCourt.Position},
		model.Location{ID: "camp", Kind: "POI", Position: Camping.Position},
		model.Location{ID: "wc_n", Kind: "POI", Position: ToiletNorth.Position},
		model.Location{ID: "wc_s", Kind: "POI", Position: ToiletSouth.Position},
	)
	return out
}

// DestinationPoints is Destinations reduced to coordinates.
func DestinationPoints(stages []model.Stage) []model.Coordinate {
	locs := Destinations(stages)
	out := make([]model.Coordinate, len(locs))
	for i, l := range locs {
		out[i] = l.Position
	}
	return out
}
