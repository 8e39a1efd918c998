package pool

import (
	"fmt"
	"strings"
)

// Dump renders the pool content, one instance per line, marking held,
// queued and flow-wait instances.
func (p *Pool) Dump() string {
	var sb strings.Builder
	sb.WriteString("Task pool content:")
	for _, t := range p.Tasks() {
		fmt.Fprintf(&sb, "\n - %s", t.Identity())
		if t.held {
			sb.WriteString(" (held)")
		}
		if t.queued {
			sb.WriteString(" (queued)")
		}
		if t.flowWait {
			sb.WriteString(" (flow-wait)")
		}
	}
	return sb.String()
}

// LogDump writes the pool content to the pool's logger. It logs at WARN so
// the listing shows up under the default level.
func (p *Pool) LogDump() {
	p.logger.Warn(p.Dump(), "tasks", len(p.tasks))
}
