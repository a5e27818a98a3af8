package memory

import (
	"cmp"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dynencounters/npc-engine/internal/prefab"
	"github.com/dynencounters/npc-engine/pkg/core"
)

// SessionExport is the root JSON structure
type SessionExport struct {
	SessionID   string                   `json:"sessionId"`
	SessionName string                   `json:"sessionName"`
	StartedAt   time.Time                `json:"startedAt"`
	Prefabs     []prefab.Definition      `json:"prefabs"`
	Constructs  []ConstructJSON          `json:"constructs"`
	Performance []core.EnginePerformance `json:"performance"`
}

// ConstructJSON is one construct's activity over the session
type ConstructJSON struct {
	ID          core.ConstructID       `json:"id"`
	ShotsFired  int                    `json:"shotsFired"`
	TotalDamage float64                `json:"totalDamage"`
	Targets     []core.ConstructID     `json:"targets"`
	Shots       []core.Shot            `json:"shots"`
	RadarScans  []core.RadarScan       `json:"radarScans"`
	Destruction *core.DestructionEvent `json:"destruction,omitempty"`
}

// exportJSON writes the session data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	name := strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(b.session.Name)
	timestamp := b.session.StartedAt.Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s.json", name, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if b.cfg.OutputDir != "" {
		if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() SessionExport {
	export := SessionExport{
		SessionID:   b.session.ID.String(),
		SessionName: b.session.Name,
		StartedAt:   b.session.StartedAt,
		Prefabs:     make([]prefab.Definition, 0, len(b.prefabs)),
		Constructs:  make([]ConstructJSON, 0, len(b.constructs)),
		Performance: slices.Clone(b.performance),
	}
	if export.Performance == nil {
		export.Performance = []core.EnginePerformance{}
	}

	for _, d := range b.prefabs {
		export.Prefabs = append(export.Prefabs, d)
	}
	slices.SortFunc(export.Prefabs, func(a, b prefab.Definition) int { return cmp.Compare(a.Name, b.Name) })

	for _, r := range b.constructs {
		c := ConstructJSON{
			ID:          r.ConstructID,
			ShotsFired:  len(r.Shots),
			Targets:     make([]core.ConstructID, 0),
			Shots:       slices.Clone(r.Shots),
			RadarScans:  slices.Clone(r.RadarScans),
			Destruction: r.Destruction,
		}
		for _, s := range r.Shots {
			c.TotalDamage += s.Weapon.Damage
			if !slices.Contains(c.Targets, s.TargetID) {
				c.Targets = append(c.Targets, s.TargetID)
			}
		}
		if c.Shots == nil {
			c.Shots = []core.Shot{}
		}
		if c.RadarScans == nil {
			c.RadarScans = []core.RadarScan{}
		}
		export.Constructs = append(export.Constructs, c)
	}
	slices.SortFunc(export.Constructs, func(a, b ConstructJSON) int { return cmp.Compare(a.ID, b.ID) })

	return export
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data SessionExport) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer func() {
		if cerr := gzWriter.Close(); err == nil {
			err = cerr
		}
	}()

	return json.NewEncoder(gzWriter).Encode(data)
}
