package catalogs

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"tentscape.ai/internal/sim/world/kernel/model"
)

//go:embed schemas/stages.schema.json
var stagesSchemaJSON string

const stagesSchemaURL = "https://tentscape.ai/schemas/stages.schema.json"

var ErrDuplicateStageID = errors.New("duplicate stage id")

// StageCatalog is a validated, ordered stage list. Order matters: the first
// stage is where friends head at the start of a generation.
type StageCatalog struct {
	Name   string
	Stages []model.Stage
	Digest string
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// StagesSchema returns the compiled stage list schema.
func StagesSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString(stagesSchemaURL, stagesSchemaJSON)
	})
	return schema, schemaErr
}

// SchemaJSON returns the raw schema document.
func SchemaJSON() []byte { return []byte(stagesSchemaJSON) }

// LoadStages reads a stage file. Files ending in .yaml or .yml are decoded as
// YAML; everything else as JSON.
func LoadStages(path string) (StageCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return StageCatalog{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err = yamlToJSON(raw)
		if err != nil {
			return StageCatalog{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	cat, err := ParseStages(raw)
	if err != nil {
		return StageCatalog{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cat, nil
}

// ParseStages validates a JSON stage list (a bare array or {"name","stages"}).
func ParseStages(raw []byte) (StageCatalog, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return StageCatalog{}, fmt.Errorf("decode stages: %w", err)
	}
	s, err := StagesSchema()
	if err != nil {
		return StageCatalog{}, fmt.Errorf("compile stages schema: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return StageCatalog{}, fmt.Errorf("validate stages: %w", err)
	}

	var cat StageCatalog
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		if err := json.Unmarshal(raw, &cat.Stages); err != nil {
			return StageCatalog{}, fmt.Errorf("decode stages: %w", err)
		}
	} else {
		var wrapped struct {
			Name   string        `json:"name"`
			Stages []model.Stage `json:"stages"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return StageCatalog{}, fmt.Errorf("decode stages: %w", err)
		}
		cat.Name = wrapped.Name
		cat.Stages = wrapped.Stages
	}
	return NewStageCatalog(cat.Name, cat.Stages)
}

// NewStageCatalog checks ids and computes the digest for an in-memory list.
func NewStageCatalog(name string, stages []model.Stage) (StageCatalog, error) {
	seen := make(map[string]bool, len(stages))
	for _, s := range stages {
		if seen[s.ID] {
			return StageCatalog{}, fmt.Errorf("%w: %s", ErrDuplicateStageID, s.ID)
		}
		seen[s.ID] = true
	}
	out := make([]model.Stage, len(stages))
	copy(out, stages)
	canon, _ := json.Marshal(out)
	return StageCatalog{Name: name, Stages: out, Digest: sha256Hex(canon)}, nil
}

// MockStages is the built-in line-up used when no stage source is configured.
func MockStages() []model.Stage {
	return []model.Stage{
		{
			ID:        "s1",
			Name:      "Nebula Main Stage",
			Type:      model.StageMain,
			Position:  model.Pt(50, 50),
			CurrentDJ: "Solomon Key",
			NextDJ:    "Lunar Disciple",
			EndTime:   "22:30",
			Vibe:      "Techno / House",
		},
		{
			ID:        "s2",
			Name:      "Quantum Tent",
			Type:      model.StageTent,
			Position:  model.Pt(20, 30),
			CurrentDJ: "Entropy",
			NextDJ:    "Maxwell Demon",
			EndTime:   "21:45",
			Vibe:      "Drum & Bass",
		},
		{
			ID:        "s3",
			Name:      "Zenith Garden",
			Type:      model.StageOutdoor,
			Position:  model.Pt(80, 70),
			CurrentDJ: "Floral Beats",
			NextDJ:    "Sun Tapes",
			EndTime:   "20:15",
			Vibe:      "Ambient / Chill",
		},
	}
}

func yamlToJSON(raw []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
