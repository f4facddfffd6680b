package serving

import (
	"sync/atomic"

	"carprice/ml"
)

// Holder is the currently active bundle. Readers load the pointer once per
// request; training and the watcher replace it wholesale.
type Holder struct {
	current atomic.Pointer[ml.Bundle]
}

func NewHolder(initial *ml.Bundle) *Holder {
	h := &Holder{}
	if initial != nil {
		h.current.Store(initial)
	}
	return h
}

// Load returns the active bundle, or nil before the first training run.
func (h *Holder) Load() *ml.Bundle {
	return h.current.Load()
}

func (h *Holder) Store(b *ml.Bundle) {
	h.current.Store(b)
}
