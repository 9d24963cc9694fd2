package dash

import (
	"time"
)

// fragment is one self-contained media fragment of a single track.
// It is owned by the controller while in progress; on finalize it
// moves into the track's fragmentWindow and never changes again.
type fragment struct {
	isVideo  bool
	sequence uint64
	start    time.Duration
	duration time.Duration
	path     string
}

// fragmentWindow is an append-only ordered record of the finalized
// fragments of one track, in finalization order.
type fragmentWindow struct {
	fragments []*fragment
}

func (w *fragmentWindow) push(f *fragment) {
	w.fragments = append(w.fragments, f)
}

func (w *fragmentWindow) size() int {
	return len(w.fragments)
}

func (w *fragmentWindow) at(i int) *fragment {
	return w.fragments[i]
}

func (w *fragmentWindow) empty() bool {
	return len(w.fragments) == 0
}

// trailing returns the last n fragments, oldest first.
func (w *fragmentWindow) trailing(n int) []*fragment {
	if n > len(w.fragments) {
		n = len(w.fragments)
	}
	return w.fragments[len(w.fragments)-n:]
}
