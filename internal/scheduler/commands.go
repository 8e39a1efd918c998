package scheduler

import (
	"github.com/Iron-Ham/cyclone/internal/flow"
	"github.com/Iron-Ham/cyclone/internal/pool"
)

// Command is an operator request applied by the tick loop.
type Command struct {
	Name  string
	Items []string
	apply func(p *pool.Pool) ([]*pool.TaskProxy, int, error)
}

// TriggerCommand triggers the selected tasks in the selected flows.
func TriggerCommand(items []string, sel flow.Selector) Command {
	return Command{Name: "trigger", Items: items, apply: func(p *pool.Pool) ([]*pool.TaskProxy, int, error) {
		released, err := p.Trigger(items, sel)
		return released, len(released), err
	}}
}

// SetCommand forces the run state of the selected tasks.
func SetCommand(items []string, status pool.Status) Command {
	return Command{Name: "set", Items: items, apply: func(p *pool.Pool) ([]*pool.TaskProxy, int, error) {
		n, err := p.SetStatus(items, status)
		return nil, n, err
	}}
}

// HoldCommand holds the selected tasks.
func HoldCommand(items []string) Command {
	return Command{Name: "hold", Items: items, apply: func(p *pool.Pool) ([]*pool.TaskProxy, int, error) {
		n, err := p.Hold(items)
		return nil, n, err
	}}
}

// ReleaseCommand releases held tasks among the selected ones.
func ReleaseCommand(items []string) Command {
	return Command{Name: "release", Items: items, apply: func(p *pool.Pool) ([]*pool.TaskProxy, int, error) {
		n, err := p.Unhold(items)
		return nil, n, err
	}}
}

// RemoveCommand removes the selected tasks from the pool.
func RemoveCommand(items []string) Command {
	return Command{Name: "remove", Items: items, apply: func(p *pool.Pool) ([]*pool.TaskProxy, int, error) {
		n, err := p.RemoveItems(items)
		return nil, n, err
	}}
}
