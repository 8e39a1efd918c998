// Package flow tracks flow identity: which re-run lineage each task instance
// belongs to.
//
// A flow identifier ([ID]) is a set of atoms. A brand-new flow gets a single
// fresh atom from the [Manager]; when a flow catches up with a task instance
// that already exists under another flow, the two identifiers are merged and
// the instance carries the union from then on, so work already done under
// either lineage is never redone for a subset of the merged one.
//
// Two allocation schemes are supported. [SchemeNumbers] issues increasing
// flow numbers and never runs out. [SchemeLabels] draws from the fixed
// 52-letter alphabet used by older workflows and fails with
// [ErrPoolExhausted] once every letter is in use; pruning returns letters
// to the pool.
//
// The manager keeps no references to tasks. Pruning works on a snapshot of
// the identifiers currently in the task pool:
//
//	var ids []*flow.ID
//	for _, t := range tasks {
//	    ids = append(ids, &t.Flows)
//	}
//	removed := mgr.Prune(ids)
package flow
