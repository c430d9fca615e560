// Package extract converts raw entity state into compact per-frame records.
// On every processed frame it filters the entity population by proximity to
// the monitored entity, derives normalized attribute records, resolves the
// lane descriptor, and forwards the result to the window writer. Extraction
// failures are isolated: a bad frame is skipped, never fatal.
package extract

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/nvandessel/trialrun/internal/constants"
	"github.com/nvandessel/trialrun/internal/world"
)

// Recorder receives finished frame records. The window writer implements it.
type Recorder interface {
	Append(frame int64, rec FrameRecord) error
}

// Extractor builds one FrameRecord per frame around a monitored entity.
type Extractor struct {
	registry  world.Registry
	lanes     world.LaneResolver
	monitored world.Entity
	threshold float64
	recorder  Recorder
	log       *slog.Logger
}

// New creates an extractor centered on the monitored entity. A threshold of
// zero falls back to the default proximity bound.
func New(registry world.Registry, lanes world.LaneResolver, monitored world.Entity, threshold float64, recorder Recorder, log *slog.Logger) *Extractor {
	if threshold <= 0 {
		threshold = constants.DefaultProximityMeters
	}
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{
		registry:  registry,
		lanes:     lanes,
		monitored: monitored,
		threshold: threshold,
		recorder:  recorder,
		log:       log,
	}
}

// ExtractFrame builds the record for one frame and queues it. The monitored
// entity's position is computed once and reused for every distance check.
// A lane-resolution failure skips the record for this frame and returns the
// error for logging only; it must not affect the run's verdict.
func (e *Extractor) ExtractFrame(frame int64) error {
	origin := e.monitored.Position()

	lane, err := e.lanes.LaneAt(origin)
	if err != nil {
		e.log.Debug("skipping frame record", "frame", frame, "error", err)
		return fmt.Errorf("resolving lane for frame %d: %w", frame, err)
	}

	rec := FrameRecord{
		Ego:           AttributesOf(e.monitored),
		Vehicles:      e.nearby(world.KindVehicle, origin, e.monitored.ID()),
		Pedestrians:   e.nearby(world.KindPedestrian, origin, 0),
		TrafficLights: e.nearby(world.KindTrafficLight, origin, 0),
		Signs:         e.nearby(world.KindSign, origin, 0),
		Lane: LaneRecord{
			Current:   string(lane.Type),
			LaneWidth: lane.Width,
			Right:     lane.RightMarking,
			Left:      lane.LeftMarking,
		},
	}

	if err := e.recorder.Append(frame, rec); err != nil {
		return fmt.Errorf("queueing frame %d: %w", frame, err)
	}
	return nil
}

// nearby collects attribute records for entities of the given kind within
// the threshold, excluding the entity with excludeID (0 excludes nothing:
// the registry never issues id 0).
func (e *Extractor) nearby(kind world.Kind, origin world.Vec3, excludeID int) map[int]Attributes {
	out := make(map[int]Attributes)
	for _, ent := range e.registry.EntitiesOfKind(kind) {
		if excludeID != 0 && ent.ID() == excludeID {
			continue
		}
		if ent.Position().Distance(origin) >= e.threshold {
			continue
		}
		out[ent.ID()] = AttributesOf(ent)
	}
	return out
}

// AttributesOf derives the normalized attribute record for one entity.
func AttributesOf(ent world.Entity) Attributes {
	v := ent.Velocity()
	p := ent.Position()
	r := ent.Rotation()
	a := ent.AngularVelocity()

	return Attributes{
		SpeedAbs:        int(constants.SpeedToKMH * v.Norm()),
		Velocity:        [3]int{int(v.X), int(v.Y), int(v.Z)},
		Position:        [3]int{int(p.X), int(p.Y), int(p.Z)},
		Rotation:        [3]int{int(r.Yaw), int(r.Roll), int(r.Pitch)},
		AngularVelocity: [3]int{int(a.X), int(a.Y), int(a.Z)},
		Name:            DisplayName(ent.TypeID()),
	}
}

// DisplayName derives a human-readable name from a dotted type identifier:
// the first segment is dropped, underscores become separators, each segment
// is title-cased, and the result is truncated to MaxDisplayNameLen with a
// trailing ellipsis marker.
func DisplayName(typeID string) string {
	segments := strings.Split(strings.ReplaceAll(typeID, "_", "."), ".")
	if len(segments) > 1 {
		segments = segments[1:]
	} else {
		segments = nil
	}

	for i, seg := range segments {
		segments[i] = titleCase(seg)
	}
	name := strings.Join(segments, " ")

	runes := []rune(name)
	if len(runes) > constants.MaxDisplayNameLen {
		return string(runes[:constants.MaxDisplayNameLen-1]) + "…"
	}
	return name
}

// titleCase upper-cases the first letter of a segment and lower-cases the rest.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
