package schematic

import (
	"go.uber.org/multierr"

	"github.com/Faultbox/mapeditor/pkg/math"
)

// Registry owns the attached blocks of one composite.
type Registry struct {
	blocks   []*Block
	parent   math.Transform
	onChange func(ChangeEvent)
}

// NewRegistry creates an empty registry. onChange, if set, receives every
// detected block change.
func NewRegistry(onChange func(ChangeEvent)) *Registry {
	return &Registry{
		parent:   math.IdentityTransform(),
		onChange: onChange,
	}
}

// Attach registers a block and returns its slot.
func (r *Registry) Attach(b *Block) int {
	b.registry = r
	b.slot = len(r.blocks)
	r.blocks = append(r.blocks, b)
	return b.slot
}

// At returns the block in slot i.
func (r *Registry) At(i int) *Block {
	return r.blocks[i]
}

// Len returns the number of slots.
func (r *Registry) Len() int {
	return len(r.blocks)
}

// Blocks returns the blocks in slot order.
func (r *Registry) Blocks() []*Block {
	result := make([]*Block, len(r.blocks))
	copy(result, r.blocks)
	return result
}

// Parent returns the parent transform of the last update.
func (r *Registry) Parent() math.Transform {
	return r.parent
}

// Update recomputes the pose of the block in slot i from parent and runs
// its change propagation. Destroyed blocks are skipped. A block playing its
// own animation keeps its pose.
func (r *Registry) Update(i int, parent math.Transform) error {
	r.parent = parent
	b := r.blocks[i]
	if !b.Alive() {
		return nil
	}
	if !b.Animating() {
		b.SetTransform(parent.Child(b.Original))
	}
	return b.UpdateObject()
}

// RecomputeAll updates every block against parent in one synchronous pass.
func (r *Registry) RecomputeAll(parent math.Transform) error {
	var errs error
	for i := range r.blocks {
		errs = multierr.Append(errs, r.Update(i, parent))
	}
	return errs
}

// DetachAll destroys every block. Blocks already destroyed are skipped.
func (r *Registry) DetachAll() error {
	var errs error
	for _, b := range r.blocks {
		if b.Alive() {
			errs = multierr.Append(errs, b.Destroy())
		}
	}
	return errs
}

func (r *Registry) replace(i int, b *Block) {
	b.registry = r
	b.slot = i
	r.blocks[i] = b
}

func (r *Registry) changed(ev ChangeEvent) {
	if r.onChange != nil {
		r.onChange(ev)
	}
}
