package camera

import "sync"

// OrbitControl is the shared "orbit enabled" capability. Any number of
// interactions may suspend it; orbiting resumes only when every suspension
// has been released.
type OrbitControl struct {
	mu        sync.Mutex
	suspended int
}

// NewOrbitControl returns an enabled control.
func NewOrbitControl() *OrbitControl {
	return &OrbitControl{}
}

// Enabled reports whether no suspension is outstanding.
func (o *OrbitControl) Enabled() bool {
	if o == nil {
		return true
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.suspended == 0
}

// Suspend disables orbiting until the returned release func is called.
// Calling release more than once has no further effect.
func (o *OrbitControl) Suspend() (release func()) {
	if o == nil {
		return func() {}
	}
	o.mu.Lock()
	o.suspended++
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			o.suspended--
			o.mu.Unlock()
		})
	}
}

// Guard runs fn with orbiting suspended and restores it on every exit path,
// including a panic in fn.
func (o *OrbitControl) Guard(fn func()) {
	release := o.Suspend()
	defer release()
	fn()
}
