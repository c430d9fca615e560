package extract

// Attributes is a derived, read-only snapshot of one entity's state.
// Vector components are truncated toward zero, not rounded; the absolute
// speed is converted from simulation units/second to km/h before truncation.
// JSON keys match the persisted window format.
type Attributes struct {
	SpeedAbs        int    `json:"velocity_abs"`
	Velocity        [3]int `json:"velocity"`
	Position        [3]int `json:"location"`
	Rotation        [3]int `json:"rotation"`
	AngularVelocity [3]int `json:"ang_velocity"`
	Name            string `json:"name"`
}

// LaneRecord describes the road lane under the monitored entity.
type LaneRecord struct {
	Current   string  `json:"Current"`
	LaneWidth float64 `json:"LaneWidth"`
	Right     string  `json:"Right"`
	Left      string  `json:"Left"`
}

// FrameRecord is the windowed snapshot for one frame: the monitored entity,
// every nearby dynamic entity keyed by id, and the lane descriptor.
// Immutable once built; ownership passes to the window writer.
type FrameRecord struct {
	Ego           Attributes         `json:"ego"`
	Vehicles      map[int]Attributes `json:"actors"`
	Pedestrians   map[int]Attributes `json:"pedestrians"`
	TrafficLights map[int]Attributes `json:"trafficlights"`
	Signs         map[int]Attributes `json:"signs"`
	Lane          LaneRecord         `json:"lane"`
}
