// Package world defines the interfaces through which the scenario core talks
// to a live simulation: the frame source, the entity registry, the lane
// resolver, and the optional autonomous agent. It also ships a small
// deterministic in-memory Sim implementing all of them, used by the CLI demo
// run and by tests.
package world

import "math"

// Vec3 is a position, velocity, or angular velocity in simulation space.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Norm returns the Euclidean magnitude of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Distance returns the straight-line 3D distance between v and o.
func (v Vec3) Distance(o Vec3) float64 {
	return v.Sub(o).Norm()
}

// Scale returns v multiplied by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Rot is an orientation in degrees.
type Rot struct {
	Yaw   float64 `json:"yaw" yaml:"yaw"`
	Roll  float64 `json:"roll" yaml:"roll"`
	Pitch float64 `json:"pitch" yaml:"pitch"`
}

// Kind classifies registry entities for snapshot extraction.
type Kind string

const (
	KindVehicle      Kind = "vehicle"
	KindPedestrian   Kind = "pedestrian"
	KindTrafficLight Kind = "traffic_light"
	KindSign         Kind = "sign"
)

// Entity is a read-only handle onto one simulated actor. Handles stay valid
// for the lifetime of a run; their state reflects the latest frame.
type Entity interface {
	// ID is the actor's stable identity within the simulation.
	ID() int

	// TypeID is the dotted type identifier, e.g. "vehicle.tesla.model3".
	TypeID() string

	Position() Vec3
	Velocity() Vec3
	Rotation() Rot
	AngularVelocity() Vec3
}

// Control is a command computed by an agent for the monitored entity.
type Control struct {
	Throttle float64
	Steer    float64
	Brake    float64
}

// Applier receives the agent's control command for a frame. The monitored
// entity of an agent-driven scenario implements it.
type Applier interface {
	ApplyControl(Control)
}

// FrameSource produces the external tick signal. One frame is one discrete
// simulation step with an increasing id and monotonically increasing
// simulated elapsed time.
type FrameSource interface {
	// HasNewFrame reports whether a frame is ready that the caller has
	// not consumed yet.
	HasNewFrame() bool

	// CurrentFrame returns the elapsed simulated seconds and id of the
	// latest frame.
	CurrentFrame() (elapsed float64, frame int64)

	// Advance asks the driver to produce the next frame.
	Advance()
}

// Registry exposes the live entity population. Refresh re-snapshots the
// population once per frame; EntitiesOfKind reads from that snapshot.
type Registry interface {
	Refresh()
	EntitiesOfKind(Kind) []Entity
}

// LaneType restricts lane resolution to the categories the extractor records.
type LaneType string

const (
	LaneDriving  LaneType = "Driving"
	LaneShoulder LaneType = "Shoulder"
	LaneSidewalk LaneType = "Sidewalk"
)

// LaneInfo describes the road lane at a projected position.
type LaneInfo struct {
	Type         LaneType
	Width        float64
	LeftMarking  string
	RightMarking string
}

// LaneResolver projects a position onto the road network and returns the
// lane descriptor there, restricted to driving/shoulder/sidewalk lanes.
type LaneResolver interface {
	LaneAt(Vec3) (LaneInfo, error)
}

// Agent is an optional autonomous controller for the monitored entity.
type Agent interface {
	// Setup binds the agent to the entity it controls.
	Setup(monitored Entity, debug bool) error

	// Act computes the control command for the current frame.
	Act() Control

	// Cleanup releases agent resources. Called exactly once per run.
	Cleanup()
}
