package reloc

import "github.com/elfload/elfload/arch"

// Array is one relocation table (either .rela.dyn or .rela.plt) plus
// its deferred-relocation bookkeeping.
type Array struct {
	Relas  []arch.Rela
	bitmap *Bitmap
	stage  Stage
}

// NewArray wraps relas with a fresh all-pending bitmap.
func NewArray(relas []arch.Rela) *Array {
	return &Array{Relas: relas, bitmap: NewBitmap(len(relas)), stage: StageInit}
}

// IsFinished reports whether the most recent Relocate pass resolved
// every entry it attempted.
func (a *Array) IsFinished() bool { return a.stage == StageFinish }

// Apply is called by Relocate for each entry still pending; returning
// false marks the entry as rejected (to retry on the next pass) and
// drops the array back to Relocating.
type Apply func(rela *arch.Rela, idx int) bool

// Relocate runs one pass over the array: on the first call (Init) it
// visits every entry; on later calls (Relocating) it revisits only
// entries a previous pass rejected. A pass that starts already Finished
// is a no-op, matching original_source/src/relocation.rs's state
// machine so that re-running Relocate after more dependencies are loaded
// only costs as much as there are still-pending entries.
func (a *Array) Relocate(apply Apply) {
	switch a.stage {
	case StageInit:
		a.stage = StageFinish
		for idx := range a.Relas {
			if !apply(&a.Relas[idx], idx) {
				a.bitmap.Clear(idx)
				a.stage = StageRelocating
			}
		}
	case StageRelocating:
		a.stage = StageFinish
		it := newIterator(a.bitmap)
		for {
			idx, ok := it.next()
			if !ok {
				break
			}
			a.bitmap.Set(idx)
			if !apply(&a.Relas[idx], idx) {
				a.bitmap.Clear(idx)
				a.stage = StageRelocating
			}
		}
	case StageFinish:
	}
}

// Pending calls f for every entry still marked unresolved, used to
// build a diagnostic of what symbols remain unbound.
func (a *Array) Pending(f func(idx int)) {
	it := newIterator(a.bitmap)
	for {
		idx, ok := it.next()
		if !ok {
			return
		}
		f(idx)
	}
}
