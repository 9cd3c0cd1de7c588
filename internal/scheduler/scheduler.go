// Package scheduler runs cooperative tasks on the server tick.
//
// Every task runs on the goroutine that calls Tick. A task suspends by
// returning a Wait and is resumed on a later tick once the wait is satisfied.
// The scheduler has no locks and must only be used from one goroutine.
package scheduler

type waitKind uint8

const (
	waitDone waitKind = iota
	waitNextTick
	waitSeconds
	waitUntil
)

// Wait describes what a task is waiting for before it is resumed.
type Wait struct {
	kind    waitKind
	seconds float64
	until   func() bool
}

// Done ends the task.
func Done() Wait {
	return Wait{kind: waitDone}
}

// NextTick resumes the task on the next tick.
func NextTick() Wait {
	return Wait{kind: waitNextTick}
}

// Seconds resumes the task once d seconds of scheduler time have passed.
// A non-positive duration behaves like NextTick.
func Seconds(d float64) Wait {
	return Wait{kind: waitSeconds, seconds: d}
}

// Until resumes the task on the first tick where cond returns true.
func Until(cond func() bool) Wait {
	return Wait{kind: waitUntil, until: cond}
}

// IsDone reports whether the wait ends the task.
func (w Wait) IsDone() bool {
	return w.kind == waitDone
}

// Task is a resumable unit of work.
type Task interface {
	// Resume runs the task until its next suspension point.
	Resume() Wait
}

// TaskFunc adapts a function to Task.
type TaskFunc func() Wait

// Resume calls f.
func (f TaskFunc) Resume() Wait {
	return f()
}

// TaskID identifies a running task.
type TaskID uint64

type entry struct {
	id     TaskID
	task   Task
	alive  func() bool
	wait   Wait
	wakeAt float64
	since  uint64 // first tick the entry may be resumed on
	dead   bool
}

// Scheduler drives tasks from the host's per-tick update.
type Scheduler struct {
	now    float64
	ticks  uint64
	nextID TaskID
	tasks  []*entry
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Now returns the scheduler clock in seconds.
func (s *Scheduler) Now() float64 {
	return s.now
}

// Ticks returns the number of completed ticks.
func (s *Scheduler) Ticks() uint64 {
	return s.ticks
}

// Len returns the number of suspended tasks.
func (s *Scheduler) Len() int {
	n := 0
	for _, e := range s.tasks {
		if !e.dead {
			n++
		}
	}
	return n
}

// Run starts a task. The task runs immediately up to its first wait.
// alive is checked before every later resumption; when it returns false the
// task is dropped without being resumed. A nil alive means always alive.
func (s *Scheduler) Run(task Task, alive func() bool) TaskID {
	s.nextID++
	id := s.nextID

	w := task.Resume()
	if w.IsDone() {
		return id
	}

	e := &entry{id: id, task: task, alive: alive, since: s.ticks + 1}
	s.suspend(e, w)
	s.tasks = append(s.tasks, e)
	return id
}

// Kill drops a suspended task. It reports whether the task was found.
func (s *Scheduler) Kill(id TaskID) bool {
	for _, e := range s.tasks {
		if e.id == id && !e.dead {
			e.dead = true
			return true
		}
	}
	return false
}

// Running reports whether the task is still suspended in the scheduler.
func (s *Scheduler) Running(id TaskID) bool {
	for _, e := range s.tasks {
		if e.id == id && !e.dead {
			return true
		}
	}
	return false
}

// Tick advances the clock by dt seconds and resumes every ready task once,
// in the order the tasks were started. Tasks started during the tick wait
// for the next one.
func (s *Scheduler) Tick(dt float64) {
	s.ticks++
	s.now += dt

	n := len(s.tasks)
	for i := 0; i < n; i++ {
		e := s.tasks[i]
		if e.dead {
			continue
		}
		if e.alive != nil && !e.alive() {
			e.dead = true
			continue
		}
		if !s.ready(e) {
			continue
		}

		w := e.task.Resume()
		if w.IsDone() {
			e.dead = true
			continue
		}
		e.since = s.ticks + 1
		s.suspend(e, w)
	}

	kept := s.tasks[:0]
	for _, e := range s.tasks {
		if !e.dead {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(s.tasks); i++ {
		s.tasks[i] = nil
	}
	s.tasks = kept
}

func (s *Scheduler) suspend(e *entry, w Wait) {
	e.wait = w
	if w.kind == waitSeconds {
		e.wakeAt = s.now + w.seconds
	}
}

func (s *Scheduler) ready(e *entry) bool {
	if s.ticks < e.since {
		return false
	}
	switch e.wait.kind {
	case waitSeconds:
		return s.now >= e.wakeAt
	case waitUntil:
		return e.wait.until()
	default:
		return true
	}
}
