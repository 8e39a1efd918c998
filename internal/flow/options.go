package flow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Keywords accepted wherever a flow is selected.
const (
	FlowAll  = "all"
	FlowNew  = "new"
	FlowNone = "none"
)

// Validation errors for flow selections.
var (
	ErrFlowValue  = errors.New("flow values must be integer, 'all', 'new', or 'none'")
	ErrFlowNumber = errors.New("flow numbers start at 1")
	ErrFlowInt    = errors.New("multiple flow options must all be integer valued")
	ErrFlowMeta   = errors.New("metadata is only for new flows")
	ErrFlowWait   = errors.New("--wait is not compatible with --flow=new or --flow=none")
)

// SelectorKind says which flows a selection refers to.
type SelectorKind int

const (
	// SelectAll assigns every currently active flow.
	SelectAll SelectorKind = iota
	// SelectNew starts a new flow.
	SelectNew
	// SelectNone assigns no flow.
	SelectNone
	// SelectNumbers assigns specific existing flows.
	SelectNumbers
)

func (k SelectorKind) String() string {
	switch k {
	case SelectAll:
		return FlowAll
	case SelectNew:
		return FlowNew
	case SelectNone:
		return FlowNone
	default:
		return "numbers"
	}
}

// Selector is a validated flow selection from an operator command.
type Selector struct {
	Kind        SelectorKind
	Numbers     ID     // SelectNumbers only
	Description string // SelectNew only
	Wait        bool   // hold at the merge point before flowing on
	Default     bool   // no flow values were given
}

// ParseSelector validates --flow values together with --meta and --wait.
// No values means "all".
func ParseSelector(values []string, description string, wait bool) (Selector, error) {
	defaulted := len(values) == 0
	if defaulted {
		values = []string{FlowAll}
	}

	sel := Selector{Kind: SelectNumbers, Wait: wait, Default: defaulted}
	var nums []int
	for _, raw := range values {
		v := strings.TrimSpace(raw)
		switch v {
		case FlowAll, FlowNew, FlowNone:
			if len(values) != 1 {
				return Selector{}, ErrFlowInt
			}
			sel.Kind = map[string]SelectorKind{FlowAll: SelectAll, FlowNew: SelectNew, FlowNone: SelectNone}[v]
		default:
			n, err := strconv.Atoi(v)
			if err != nil {
				return Selector{}, ErrFlowValue
			}
			if n < 1 {
				return Selector{}, fmt.Errorf("%w: got %d", ErrFlowNumber, n)
			}
			nums = append(nums, n)
		}
	}
	sel.Numbers = NewID(nums...)

	if description != "" && sel.Kind != SelectNew {
		return Selector{}, ErrFlowMeta
	}
	sel.Description = description

	if wait && (sel.Kind == SelectNew || sel.Kind == SelectNone) {
		return Selector{}, ErrFlowWait
	}
	return sel, nil
}

// Resolve turns a selection into an identifier. active is the union of
// flows currently in the task pool, used for SelectAll. SelectNew allocates.
func (m *Manager) Resolve(sel Selector, active ID) (ID, error) {
	switch sel.Kind {
	case SelectAll:
		return active, nil
	case SelectNew:
		return m.Allocate(sel.Description)
	case SelectNone:
		return nil, nil
	default:
		return sel.Numbers, nil
	}
}
