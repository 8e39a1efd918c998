package flow

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/cyclone/internal/event"
	"github.com/Iron-Ham/cyclone/internal/logging"
)

// Scheme selects how atoms are allocated.
type Scheme string

const (
	// SchemeNumbers issues flow numbers 1, 2, 3, ... without limit.
	SchemeNumbers Scheme = "numbers"
	// SchemeLabels issues letters from a fixed alphabet; kept for
	// compatibility with state written by older schedulers.
	SchemeLabels Scheme = "labels"
)

// Alphabet is the label alphabet. Atom i renders as Alphabet[i].
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const defaultDescription = "no description"

// Sentinel errors returned by the manager.
var (
	ErrPoolExhausted = errors.New("flow label pool exhausted")
	ErrUnknownScheme = errors.New("unknown flow scheme")
	ErrSchemeChanged = errors.New("flow scheme does not match saved state")
)

// ValidSchemes returns the accepted scheme names.
func ValidSchemes() []string {
	return []string{string(SchemeNumbers), string(SchemeLabels)}
}

// Meta describes one flow.
type Meta struct {
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
}

// Manager allocates, merges, matches and prunes flow identifiers.
// It is safe for concurrent use.
type Manager struct {
	mu        sync.Mutex
	scheme    Scheme
	counter   int              // numbers: last issued flow number
	available map[int]struct{} // labels: free atoms
	flows     map[int]Meta
	bus       *event.Bus
	logger    *logging.Logger
	now       func() time.Time
}

// NewManager creates a manager for scheme. bus may be nil.
func NewManager(scheme Scheme, bus *event.Bus, logger *logging.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	m := &Manager{
		scheme: scheme,
		flows:  make(map[int]Meta),
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
	switch scheme {
	case SchemeNumbers:
	case SchemeLabels:
		m.available = make(map[int]struct{}, len(Alphabet))
		for i := range len(Alphabet) {
			m.available[i] = struct{}{}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	return m, nil
}

// Scheme returns the allocation scheme.
func (m *Manager) Scheme() Scheme { return m.scheme }

// Allocate starts a new flow and returns its single-atom identifier. Under
// the label scheme it fails with ErrPoolExhausted when every letter is in
// use; that condition does not clear without a prune, so callers should not
// retry.
func (m *Manager) Allocate(description string) (ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var atom int
	switch m.scheme {
	case SchemeLabels:
		if len(m.available) == 0 {
			return nil, ErrPoolExhausted
		}
		atom = minKey(m.available)
		delete(m.available, atom)
	default:
		m.counter++
		atom = m.counter
	}

	if description == "" {
		description = defaultDescription
	}
	meta := Meta{Description: description, StartTime: m.now().Truncate(time.Second)}
	m.flows[atom] = meta

	id := NewID(atom)
	label := m.label(id)
	m.logger.Info("new flow", "flow", label, "description", description, "start_time", meta.StartTime)
	m.bus.Publish(event.NewFlowStartedEvent(label, description))
	return id, nil
}

// Merge returns the union of a and b (a itself when equal).
func (m *Manager) Merge(a, b ID) ID { return Merge(a, b) }

// Match reports whether a and b belong to the same lineage.
func (m *Manager) Match(a, b ID) bool { return Match(a, b) }

// Prune simplifies the identifiers of the active task pool in place.
//
// Atoms common to every non-empty identifier are redundant except for one,
// which is kept so every flow stays distinguishable from a flow started
// later. The redundant atoms are stripped from each identifier and, under
// the label scheme, returned to the pool. Nothing happens unless at least
// two distinct identifiers are active. The stripped atoms are returned in
// ascending order.
func (m *Manager) Prune(active []*ID) []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	distinct := make(map[string]ID)
	for _, p := range active {
		if p == nil || p.IsEmpty() {
			continue
		}
		distinct[p.String()] = *p
	}
	if len(distinct) < 2 {
		return nil
	}

	ids := make([]ID, 0, len(distinct))
	for _, id := range distinct {
		ids = append(ids, id)
	}
	common := Common(ids)
	if len(common) < 2 {
		return nil
	}
	strip := common[1:]

	for _, p := range active {
		if p == nil || p.IsEmpty() {
			continue
		}
		*p = p.without(strip)
	}
	if m.scheme == SchemeLabels {
		for _, a := range strip {
			m.available[a] = struct{}{}
			delete(m.flows, a)
		}
	}

	removed := slices.Clone([]int(strip))
	m.logger.Warn("pruned flow atoms", "atoms", m.label(strip), "kept", m.label(common[:1]))
	m.bus.Publish(event.NewFlowsPrunedEvent(removed))
	return removed
}

// Label renders id for humans: flow numbers as "1,2", letters as "aQ".
func (m *Manager) Label(id ID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.label(id)
}

func (m *Manager) label(id ID) string {
	if m.scheme != SchemeLabels {
		return id.String()
	}
	var sb strings.Builder
	for _, a := range id {
		if a >= 0 && a < len(Alphabet) {
			sb.WriteByte(Alphabet[a])
		}
	}
	return sb.String()
}

// Flows returns the metadata of every known flow keyed by atom.
func (m *Manager) Flows() map[int]Meta {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[int]Meta, len(m.flows))
	for k, v := range m.flows {
		out[k] = v
	}
	return out
}

// Known returns the atoms of every recorded flow, ascending.
func (m *Manager) Known() ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	atoms := make([]int, 0, len(m.flows))
	for a := range m.flows {
		atoms = append(atoms, a)
	}
	return NewID(atoms...)
}

// Available returns the number of atoms that can still be allocated, or -1
// for the unbounded number scheme.
func (m *Manager) Available() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scheme != SchemeLabels {
		return -1
	}
	return len(m.available)
}

// State is the persisted form of a manager.
type State struct {
	Scheme    Scheme       `json:"scheme"`
	Counter   int          `json:"counter,omitempty"`
	Available []int        `json:"available,omitempty"`
	Flows     map[int]Meta `json:"flows"`
}

// Snapshot captures the manager state for persistence.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := State{Scheme: m.scheme, Counter: m.counter, Flows: make(map[int]Meta, len(m.flows))}
	for k, v := range m.flows {
		s.Flows[k] = v
	}
	if m.scheme == SchemeLabels {
		for a := range m.available {
			s.Available = append(s.Available, a)
		}
		slices.Sort(s.Available)
	}
	return s
}

// Restore loads persisted state on scheduler restart. The number counter
// resumes from the highest flow number seen so numbers are never reissued,
// and the label pool is restored exactly.
func (m *Manager) Restore(s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.Scheme != "" && s.Scheme != m.scheme {
		return fmt.Errorf("%w: saved %q, configured %q", ErrSchemeChanged, s.Scheme, m.scheme)
	}

	m.flows = make(map[int]Meta, len(s.Flows))
	for k, v := range s.Flows {
		m.flows[k] = v
	}

	switch m.scheme {
	case SchemeLabels:
		m.available = make(map[int]struct{}, len(s.Available))
		for _, a := range s.Available {
			if a >= 0 && a < len(Alphabet) {
				m.available[a] = struct{}{}
			}
		}
	default:
		m.counter = s.Counter
		for a := range m.flows {
			m.counter = max(m.counter, a)
		}
	}

	m.logFlows()
	return nil
}

func (m *Manager) logFlows() {
	if len(m.flows) == 0 {
		m.logger.Info("flows: (none)")
		return
	}
	atoms := make([]int, 0, len(m.flows))
	for a := range m.flows {
		atoms = append(atoms, a)
	}
	slices.Sort(atoms)
	for _, a := range atoms {
		meta := m.flows[a]
		m.logger.Info("flow", "flow", m.label(NewID(a)), "description", meta.Description, "start_time", meta.StartTime)
	}
}

func minKey(set map[int]struct{}) int {
	first := true
	var lo int
	for k := range set {
		if first || k < lo {
			lo, first = k, false
		}
	}
	return lo
}
