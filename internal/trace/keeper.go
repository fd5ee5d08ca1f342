package trace

import "github.com/tracewalk/tracewalk/internal/ir"

// Keeper retains up to a fixed number of "best" traces from a stream of
// completed attempts, so memory stays bounded no matter how many
// attempts a run samples.
//
// Ranking: violations outrank ok traces. Error traces are the driver's
// to surface immediately and are never retained here. When capacity is
// more than one, a newly accepted trace must differ from every retained
// one in at least its final context (compared by canonical state hash),
// so asking for three counterexamples never yields three copies of one.
//
// Keeper is single-writer: the driver owns it for the whole run.
type Keeper struct {
	capacity int
	kept     []entry
}

type entry struct {
	trace Trace
	hash  string
}

// NewKeeper creates a keeper retaining at most capacity traces.
// Capacity below one is treated as one.
func NewKeeper(capacity int) *Keeper {
	if capacity < 1 {
		capacity = 1
	}
	return &Keeper{capacity: capacity}
}

// Consider offers a completed attempt's trace for retention.
func (k *Keeper) Consider(tr Trace) {
	if tr.Status == StatusError {
		return
	}

	hash := finalHash(&tr)
	if hash != "" {
		for _, e := range k.kept {
			if e.trace.Status == tr.Status && e.hash == hash {
				return // already have this counterexample
			}
		}
	}

	if len(k.kept) < k.capacity {
		k.kept = append(k.kept, entry{trace: tr, hash: hash})
		return
	}

	// At capacity: a violation may evict the earliest retained ok
	// trace; otherwise first come, first kept.
	if tr.Status != StatusViolation {
		return
	}
	for i, e := range k.kept {
		if e.trace.Status == StatusOK {
			k.kept = append(k.kept[:i], k.kept[i+1:]...)
			k.kept = append(k.kept, entry{trace: tr, hash: hash})
			return
		}
	}
}

// Best returns the retained traces in discovery order. The result never
// exceeds the keeper's capacity.
func (k *Keeper) Best() []Trace {
	out := make([]Trace, len(k.kept))
	for i, e := range k.kept {
		out[i] = e.trace
	}
	return out
}

// HasViolation reports whether any retained trace is a violation.
func (k *Keeper) HasViolation() bool {
	for _, e := range k.kept {
		if e.trace.Status == StatusViolation {
			return true
		}
	}
	return false
}

func finalHash(tr *Trace) string {
	final := tr.Final()
	if final == nil {
		return ""
	}
	h, err := ir.StateHash(final)
	if err != nil {
		// Unhashable contexts cannot participate in deduplication;
		// treat each as distinct.
		return ""
	}
	return h
}
