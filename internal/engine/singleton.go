package engine

import "sync"

var (
	instanceMu sync.Mutex
	instance   *Engine
	configured Options
)

// Configure sets the options used when the engine is created. It fails
// with ErrAlreadyCreated once Get has been called.
func Configure(opts Options) error {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance != nil {
		return ErrAlreadyCreated
	}
	configured = opts
	return nil
}

// Get returns the process-wide engine, creating it on first use. Creation
// does not touch the audio device; the graph is built lazily.
func Get() *Engine {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance == nil {
		instance = newEngine(configured)
	}
	return instance
}

// Destroy closes the audio context, releases the media element and forgets
// the engine. A later Get creates a fresh one.
func Destroy() {
	instanceMu.Lock()
	e := instance
	instance = nil
	configured = Options{}
	instanceMu.Unlock()

	if e != nil {
		e.destroy()
	}
}
