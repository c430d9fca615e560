package world

import (
	"fmt"
	"sync"
)

// Actor is the Sim's concrete entity: constant-velocity motion integrated
// once per frame. It implements Entity and Applier.
type Actor struct {
	id   int
	kind Kind
	typ  string

	mu     sync.Mutex
	pos    Vec3
	vel    Vec3
	rot    Rot
	angVel Vec3
	ctl    Control
}

func (a *Actor) ID() int        { return a.id }
func (a *Actor) TypeID() string { return a.typ }

func (a *Actor) Position() Vec3 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pos
}

func (a *Actor) Velocity() Vec3 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.vel
}

func (a *Actor) Rotation() Rot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rot
}

func (a *Actor) AngularVelocity() Vec3 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.angVel
}

// ApplyControl stores the latest agent command. The Sim integrates it on the
// next step: throttle scales velocity up, brake scales it down.
func (a *Actor) ApplyControl(c Control) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctl = c
}

// Sim is a deterministic in-memory world: a frame source, entity registry,
// and lane resolver in one. Actors move in straight lines; frames advance by
// a fixed simulated step. It exists so scenarios can run end to end without
// an external simulator attached.
type Sim struct {
	mu       sync.Mutex
	step     float64
	elapsed  float64
	frame    int64
	fresh    bool
	actors   []*Actor
	snapshot map[Kind][]Entity
	lane     LaneInfo
	nextID   int
}

// NewSim creates a Sim advancing by step simulated seconds per frame.
func NewSim(step float64) *Sim {
	return &Sim{
		step: step,
		// First frame is ready immediately.
		elapsed: step,
		frame:   1,
		fresh:   true,
		lane: LaneInfo{
			Type:         LaneDriving,
			Width:        3.5,
			LeftMarking:  "Broken",
			RightMarking: "Solid",
		},
	}
}

// SetLane overrides the lane descriptor the resolver reports.
func (s *Sim) SetLane(info LaneInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lane = info
}

// Spawn adds an actor to the world and returns its handle.
func (s *Sim) Spawn(kind Kind, typeID string, pos, vel Vec3) *Actor {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	a := &Actor{
		id:   s.nextID,
		kind: kind,
		typ:  typeID,
		pos:  pos,
		vel:  vel,
	}
	s.actors = append(s.actors, a)
	return a
}

// HasNewFrame reports whether a frame is waiting to be consumed.
func (s *Sim) HasNewFrame() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fresh
}

// CurrentFrame returns the latest frame and marks it consumed.
func (s *Sim) CurrentFrame() (float64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fresh = false
	return s.elapsed, s.frame
}

// Advance integrates every actor by one step and publishes the next frame.
func (s *Sim) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.actors {
		a.mu.Lock()
		// Agent control nudges velocity before integration.
		if a.ctl.Throttle > 0 {
			a.vel = a.vel.Scale(1 + a.ctl.Throttle*s.step)
		}
		if a.ctl.Brake > 0 {
			a.vel = a.vel.Scale(1 - a.ctl.Brake*s.step)
		}
		a.pos = a.pos.Add(a.vel.Scale(s.step))
		a.mu.Unlock()
	}

	s.elapsed += s.step
	s.frame++
	s.fresh = true
}

// Refresh re-snapshots the actor population by kind. The scheduler calls it
// once per processed frame; EntitiesOfKind reads the snapshot.
func (s *Sim) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := make(map[Kind][]Entity)
	for _, a := range s.actors {
		snap[a.kind] = append(snap[a.kind], a)
	}
	s.snapshot = snap
}

// EntitiesOfKind returns the snapshotted entities of the given kind.
func (s *Sim) EntitiesOfKind(kind Kind) []Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot[kind]
}

// LaneAt returns the configured lane descriptor. The built-in world has a
// single straight road, so the position only matters for error reporting.
func (s *Sim) LaneAt(pos Vec3) (LaneInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lane.Type == "" {
		return LaneInfo{}, fmt.Errorf("no lane at (%.1f, %.1f, %.1f)", pos.X, pos.Y, pos.Z)
	}
	return s.lane, nil
}
