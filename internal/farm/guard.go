package farm

// guard is the per-instance reentrancy lock. Acquired at every external
// entry point and released on all exit paths. Instances are independent:
// holding one farm's guard never blocks another farm.
//
// This is not a concurrency mutex — the core is single-threaded. It rejects
// reentrant re-entry through transfer hooks invoked mid-call.
type guard struct {
	component string
	locked    bool
}

func (g *guard) enter() error {
	if g.locked {
		return &ReentrancyError{Component: g.component}
	}
	g.locked = true
	return nil
}

func (g *guard) exit() {
	g.locked = false
}
