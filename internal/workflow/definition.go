// Package workflow loads cyclone workflow definitions: the task names,
// their family grouping, and the queues that limit how many of them run at
// once.
package workflow

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/cyclone/internal/taskqueue"
)

// Validation errors.
var (
	ErrNoName        = errors.New("workflow name is required")
	ErrNoTasks       = errors.New("workflow defines no tasks")
	ErrDuplicateName = errors.New("name defined more than once")
	ErrUnknownMember = errors.New("unknown task or family")
	ErrBadLimit      = errors.New("queue limit must not be negative")
	ErrBadPoints     = errors.New("invalid cycle points")
)

// Definition is a parsed workflow definition file.
type Definition struct {
	Name string `yaml:"name"`
	// InitialPoint is the first cycle point. Integer cycling runs every
	// point from InitialPoint to FinalPoint; any other point format runs
	// only the initial point.
	InitialPoint string `yaml:"initial_cycle_point"`
	FinalPoint   string `yaml:"final_cycle_point,omitempty"`
	// Tasks lists the task definition names.
	Tasks []string `yaml:"tasks"`
	// Families maps a family name to its members, which may themselves be
	// families.
	Families map[string][]string `yaml:"families,omitempty"`
	// Queues maps a queue name to its limit and members. The queue named
	// "default" covers every task.
	Queues map[string]taskqueue.QueueConfig `yaml:"queues,omitempty"`

	path string
}

// Load reads, parses and validates the definition at path.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, err
	}
	def.path = path
	return def, nil
}

// Parse parses and validates a definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing workflow file: %w", err)
	}
	if def.InitialPoint == "" {
		def.InitialPoint = "1"
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}
	return &def, nil
}

// Path returns the file the definition was loaded from, if any.
func (d *Definition) Path() string { return d.path }

// Validate checks names, family membership and queue configuration.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return ErrNoName
	}
	if len(d.Tasks) == 0 {
		return ErrNoTasks
	}

	known := make(map[string]struct{}, len(d.Tasks)+len(d.Families))
	for _, t := range d.Tasks {
		if _, dup := known[t]; dup {
			return fmt.Errorf("%w: task %q", ErrDuplicateName, t)
		}
		known[t] = struct{}{}
	}
	for fam := range d.Families {
		if _, dup := known[fam]; dup {
			return fmt.Errorf("%w: family %q", ErrDuplicateName, fam)
		}
		known[fam] = struct{}{}
	}

	for _, fam := range sortedKeys(d.Families) {
		for _, m := range d.Families[fam] {
			if _, ok := known[m]; !ok {
				return fmt.Errorf("%w %q in family %q", ErrUnknownMember, m, fam)
			}
		}
	}
	for _, q := range sortedKeys(d.Queues) {
		cfg := d.Queues[q]
		if cfg.Limit < 0 {
			return fmt.Errorf("%w: queue %q has limit %d", ErrBadLimit, q, cfg.Limit)
		}
		if q == taskqueue.DefaultQueue {
			continue
		}
		for _, m := range cfg.Members {
			if _, ok := known[m]; !ok {
				return fmt.Errorf("%w %q in queue %q", ErrUnknownMember, m, q)
			}
		}
	}

	if d.FinalPoint != "" {
		first, ferr := strconv.Atoi(d.InitialPoint)
		last, lerr := strconv.Atoi(d.FinalPoint)
		if ferr == nil && lerr == nil && last < first {
			return fmt.Errorf("%w: final point %s is before initial point %s", ErrBadPoints, d.FinalPoint, d.InitialPoint)
		}
	}
	return nil
}

// TaskNames returns the task definition names, sorted.
func (d *Definition) TaskNames() []string {
	out := slices.Clone(d.Tasks)
	slices.Sort(out)
	return out
}

// Descendants returns the family membership map used to expand queue
// members.
func (d *Definition) Descendants() map[string][]string {
	out := make(map[string][]string, len(d.Families))
	for fam, members := range d.Families {
		out[fam] = slices.Clone(members)
	}
	return out
}

// Points returns the cycle points to run.
func (d *Definition) Points() []string {
	first, ferr := strconv.Atoi(d.InitialPoint)
	last, lerr := strconv.Atoi(d.FinalPoint)
	if ferr != nil || lerr != nil {
		return []string{d.InitialPoint}
	}
	points := make([]string, 0, last-first+1)
	for p := first; p <= last; p++ {
		points = append(points, strconv.Itoa(p))
	}
	return points
}

// NewQueue builds the admission queue for the definition.
func (d *Definition) NewQueue() *taskqueue.Queue {
	return taskqueue.New(d.Queues, d.TaskNames(), d.Descendants())
}

// Orphans returns the names in poolNames that the definition no longer
// defines.
func (d *Definition) Orphans(poolNames []string) []string {
	defined := make(map[string]struct{}, len(d.Tasks))
	for _, t := range d.Tasks {
		defined[t] = struct{}{}
	}
	var out []string
	for _, n := range poolNames {
		if _, ok := defined[n]; !ok {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
