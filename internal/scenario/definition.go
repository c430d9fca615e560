package scenario

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/trialrun/internal/btree"
	"github.com/nvandessel/trialrun/internal/constants"
	"github.com/nvandessel/trialrun/internal/world"
)

// ActorDef places one actor into the built-in world.
type ActorDef struct {
	Kind     string     `yaml:"kind"` // vehicle | pedestrian | traffic_light | sign
	Type     string     `yaml:"type"` // dotted type id, e.g. vehicle.tesla.model3
	Position world.Vec3 `yaml:"position"`
	Velocity world.Vec3 `yaml:"velocity"`
}

// CriterionDef declares one pass/fail check as a boolean expression over the
// monitored entity's state.
type CriterionDef struct {
	Name               string `yaml:"name"`
	Expr               string `yaml:"expr"`
	Optional           bool   `yaml:"optional"`
	TerminateOnFailure bool   `yaml:"terminate_on_failure"`
	OnViolation        string `yaml:"on_violation"` // "" | failure | acceptable
}

// Definition is the YAML shape of a scenario file.
type Definition struct {
	Name               string  `yaml:"name"`
	Timeout            float64 `yaml:"timeout"`
	TerminateOnFailure bool    `yaml:"terminate_on_failure"`

	// Step is the simulated seconds per frame of the built-in world.
	Step float64 `yaml:"step"`

	// Goal, when set, gives the run a success condition: the scenario
	// completes once the ego is within GoalRadius of it. Without a goal
	// the run lasts until the timeout or an escalating failure.
	Goal       *world.Vec3 `yaml:"goal"`
	GoalRadius float64     `yaml:"goal_radius"`

	Ego      *ActorDef      `yaml:"ego"`
	Actors   []ActorDef     `yaml:"actors"`
	Criteria []CriterionDef `yaml:"criteria"`
}

// DefaultDefinition returns a definition with defaults applied.
func DefaultDefinition() *Definition {
	return &Definition{
		Timeout:    constants.DefaultTimeoutSeconds,
		Step:       0.05,
		GoalRadius: 2.0,
	}
}

// LoadDefinition reads a scenario definition from a YAML file and validates
// it.
func LoadDefinition(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening scenario file: %w", err)
	}
	defer f.Close()
	return ReadDefinition(f)
}

// ReadDefinition decodes a scenario definition from r, applies defaults, and
// validates it.
func ReadDefinition(r io.Reader) (*Definition, error) {
	def := DefaultDefinition()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(def); err != nil {
		return nil, fmt.Errorf("parsing scenario definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

var validKinds = map[string]world.Kind{
	string(world.KindVehicle):      world.KindVehicle,
	string(world.KindPedestrian):   world.KindPedestrian,
	string(world.KindTrafficLight): world.KindTrafficLight,
	string(world.KindSign):         world.KindSign,
}

// Validate checks the definition for configuration errors.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: scenario name is required", ErrConfiguration)
	}
	if d.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %f", ErrConfiguration, d.Timeout)
	}
	if d.Step <= 0 {
		return fmt.Errorf("%w: step must be positive, got %f", ErrConfiguration, d.Step)
	}
	if d.Ego == nil {
		return fmt.Errorf("%w: scenario needs an ego actor", ErrConfiguration)
	}
	if d.Goal != nil && d.GoalRadius <= 0 {
		return fmt.Errorf("%w: goal_radius must be positive, got %f", ErrConfiguration, d.GoalRadius)
	}
	if _, ok := validKinds[d.Ego.Kind]; d.Ego.Kind != "" && !ok {
		return fmt.Errorf("%w: unknown ego kind %q", ErrConfiguration, d.Ego.Kind)
	}
	for i, a := range d.Actors {
		if _, ok := validKinds[a.Kind]; !ok {
			return fmt.Errorf("%w: actor %d has unknown kind %q", ErrConfiguration, i, a.Kind)
		}
	}
	for i, c := range d.Criteria {
		if c.Name == "" {
			return fmt.Errorf("%w: criterion %d has no name", ErrConfiguration, i)
		}
		if c.Expr == "" {
			return fmt.Errorf("%w: criterion %q has no expression", ErrConfiguration, c.Name)
		}
		switch c.OnViolation {
		case "", "failure", "acceptable":
		default:
			return fmt.Errorf("%w: criterion %q has unknown on_violation %q", ErrConfiguration, c.Name, c.OnViolation)
		}
	}
	return nil
}

// BuildCriteria compiles the definition's criteria into tree leaves. vars
// supplies the evaluation environment for the current frame.
func (d *Definition) BuildCriteria(vars func() map[string]any) ([]*btree.Criterion, error) {
	var out []*btree.Criterion
	for _, cd := range d.Criteria {
		crit, err := btree.NewExprCriterion(cd.Name, cd.Expr, vars)
		if err != nil {
			return nil, err
		}
		crit.Optional = cd.Optional
		crit.TerminateOnFailure = cd.TerminateOnFailure
		if cd.OnViolation == "acceptable" {
			crit.WithViolationStatus(btree.TestAcceptable)
		}
		out = append(out, crit)
	}
	return out, nil
}

// BuildBehavior returns the goal-seeking behavior for the ego, or nil when
// the definition has no goal.
func (d *Definition) BuildBehavior(ego world.Entity) btree.Node {
	if d.Goal == nil {
		return nil
	}
	goal := *d.Goal
	radius := d.GoalRadius
	return btree.NewAction("ReachGoal", func() btree.Status {
		if ego.Position().Distance(goal) <= radius {
			return btree.Success
		}
		return btree.Running
	})
}

// BuildSim constructs the built-in world from the definition and returns the
// sim together with the spawned ego actor.
func (d *Definition) BuildSim() (*world.Sim, *world.Actor) {
	sim := world.NewSim(d.Step)

	egoKind := world.KindVehicle
	if d.Ego.Kind != "" {
		egoKind = validKinds[d.Ego.Kind]
	}
	ego := sim.Spawn(egoKind, d.Ego.Type, d.Ego.Position, d.Ego.Velocity)

	for _, a := range d.Actors {
		sim.Spawn(validKinds[a.Kind], a.Type, a.Position, a.Velocity)
	}
	return sim, ego
}
