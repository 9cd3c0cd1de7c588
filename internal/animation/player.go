// Package animation plays keyframe tracks on placed objects.
package animation

import (
	"github.com/Faultbox/mapeditor/internal/scheduler"
	"github.com/Faultbox/mapeditor/pkg/formats"
	"github.com/Faultbox/mapeditor/pkg/math"
)

// DefaultTolerance is the squared distance, in world units and degrees, below
// which the remaining delta of a frame counts as reached.
// Schematics built at very large scale may need a larger value.
const DefaultTolerance float32 = 1

// Target is the pose an animation moves.
type Target interface {
	Position() math.Vec3
	SetPosition(math.Vec3)
	Rotation() math.Quat
	SetRotation(math.Quat)
}

// TransformTarget animates a transform in place.
type TransformTarget struct {
	T *math.Transform
}

func (t TransformTarget) Position() math.Vec3     { return t.T.Position }
func (t TransformTarget) SetPosition(p math.Vec3) { t.T.Position = p }
func (t TransformTarget) Rotation() math.Quat     { return t.T.Rotation }
func (t TransformTarget) SetRotation(q math.Quat) { t.T.Rotation = q }

// RotationSpace selects how rotation increments are combined with the target rotation.
type RotationSpace uint8

const (
	// Local applies increments around the target's own axes.
	Local RotationSpace = iota
	// World applies increments around the world axes.
	World
)

// Options configures a Player.
type Options struct {
	EndAction formats.AnimationEndAction
	Space     RotationSpace
	Tolerance float32 // zero means DefaultTolerance

	// OnStep runs after every increment.
	OnStep func()
	// OnEnding may replace the end action once the last frame has played.
	OnEnding func(formats.AnimationEndAction) formats.AnimationEndAction
	// OnLoop runs before the track restarts. Resetting the target here
	// discards the drift accumulated by the previous pass.
	OnLoop func()
	// OnDestroy tears the animated object down.
	OnDestroy func()
	// OnFinish runs when playback stops for good.
	OnFinish func()
}

type phase uint8

const (
	phaseStart phase = iota
	phaseWaiting
	phaseStepping
)

// Player steps a target through a sequence of frames. It is a scheduler task.
type Player struct {
	frames []formats.AnimationFrame
	target Target
	opts   Options

	phase        phase
	index        int
	deltaPos     math.Vec3
	deltaRot     math.Vec3
	remainingPos math.Vec3
	remainingRot math.Vec3

	signals int
	manual  bool // track has a frame waiting for signals
	active  bool
	stopped bool
	steps   int
	loops   int
}

// NewPlayer creates a player. Frames must already be validated;
// a zero rate produces non-finite steps.
func NewPlayer(frames []formats.AnimationFrame, target Target, opts Options) *Player {
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	p := &Player{
		frames: frames,
		target: target,
		opts:   opts,
		active: len(frames) > 0,
	}
	for _, f := range frames {
		if f.IsManual() {
			p.manual = true
			break
		}
	}
	return p
}

// Play starts frames on s. An empty track does nothing and returns nil.
func Play(s *scheduler.Scheduler, frames []formats.AnimationFrame, target Target, opts Options, alive func() bool) *Player {
	if len(frames) == 0 {
		return nil
	}
	p := NewPlayer(frames, target, opts)
	s.Run(p, alive)
	return p
}

// Active reports whether the track is still playing.
func (p *Player) Active() bool {
	return p.active
}

// Steps returns the number of increments applied so far.
func (p *Player) Steps() int {
	return p.steps
}

// Loops returns how many times the track restarted.
func (p *Player) Loops() int {
	return p.loops
}

// Frame returns the index of the frame being played.
func (p *Player) Frame() int {
	return p.index
}

// Waiting reports whether the player is holding a manual frame for a signal.
func (p *Player) Waiting() bool {
	return p.active && p.phase == phaseWaiting && p.index < len(p.frames) && p.frames[p.index].IsManual()
}

// PlayOneFrame releases the next frame that waits for a signal. Signals
// raised while no frame waits are kept, so N signals release the next N
// manual frames. Players without manual frames and finished players ignore
// them.
func (p *Player) PlayOneFrame() {
	if p.active && p.manual {
		p.signals++
	}
}

// Stop ends playback at the next resumption without running end actions.
func (p *Player) Stop() {
	p.stopped = true
	p.active = false
	p.signals = 0
}

// Resume implements scheduler.Task.
func (p *Player) Resume() scheduler.Wait {
	if len(p.frames) == 0 || p.stopped {
		p.active = false
		return scheduler.Done()
	}

	for {
		switch p.phase {
		case phaseStart:
			if p.index >= len(p.frames) {
				if p.end() {
					return scheduler.Done()
				}
				continue
			}
			f := p.frames[p.index]
			p.remainingPos = f.PositionAdded
			p.remainingRot = f.RotationAdded
			p.deltaPos = f.PositionAdded.Div(abs(f.PositionRate))
			p.deltaRot = f.RotationAdded.Div(abs(f.RotationRate))
			p.phase = phaseWaiting
			if f.Delay >= 0 {
				return scheduler.Seconds(float64(f.Delay))
			}
			return scheduler.Until(p.latched)

		case phaseWaiting:
			if p.frames[p.index].IsManual() {
				p.signals--
			}
			p.phase = phaseStepping

		case phaseStepping:
			p.step()
			if p.stopped {
				return scheduler.Done()
			}
			if p.reached() {
				p.index++
				p.phase = phaseStart
				continue
			}
			return scheduler.Seconds(float64(p.frames[p.index].FrameLength))
		}
	}
}

func (p *Player) latched() bool {
	return p.signals > 0
}

// step applies one increment. The last increment is clamped to what remains
// so a frame never overshoots its delta.
func (p *Player) step() {
	if !p.remainingPos.IsZero() {
		d := clamp(p.deltaPos, p.remainingPos)
		p.target.SetPosition(p.target.Position().Add(d))
		p.remainingPos = p.remainingPos.Sub(d)
	}

	if !p.remainingRot.IsZero() {
		d := clamp(p.deltaRot, p.remainingRot)
		q := math.QuatFromEuler(d)
		if p.opts.Space == World {
			p.target.SetRotation(q.Mul(p.target.Rotation()))
		} else {
			p.target.SetRotation(p.target.Rotation().Mul(q))
		}
		p.remainingRot = p.remainingRot.Sub(d)
	}

	p.steps++
	if p.opts.OnStep != nil {
		p.opts.OnStep()
	}
}

func (p *Player) reached() bool {
	tol := p.opts.Tolerance
	return p.remainingPos.LengthSquared() <= tol && p.remainingRot.LengthSquared() <= tol
}

// end applies the end action. It reports whether playback is over.
func (p *Player) end() bool {
	action := p.opts.EndAction
	if p.opts.OnEnding != nil {
		action = p.opts.OnEnding(action)
	}

	if action == formats.EndActionLoop {
		p.loops++
		if p.opts.OnLoop != nil {
			p.opts.OnLoop()
		}
		p.index = 0
		p.phase = phaseStart
		return p.stopped
	}

	p.active = false
	if action == formats.EndActionDestroy && p.opts.OnDestroy != nil {
		p.opts.OnDestroy()
	}
	if p.opts.OnFinish != nil {
		p.opts.OnFinish()
	}
	return true
}

func clamp(step, remaining math.Vec3) math.Vec3 {
	if remaining.LengthSquared() < step.LengthSquared() {
		return remaining
	}
	return step
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
