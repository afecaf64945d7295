package relay

import "sync"

// trampoline is a breadth-first, re-entrancy-guarded listener registry.
// Grounded on ventosilenzioso-go-raknet's core/events.EventManager
// (Register/Trigger over a handlers-by-type map), generalized from a
// fixed EventType enum to arbitrary string event names and from
// synchronous unguarded recursion to a pending-work queue: a listener
// that fires a broadcast while an outer Trigger is already running for
// that event enqueues it instead of recursing, and the outermost Trigger
// call drains the queue after its own handler list completes, one round
// at a time. This keeps arbitrarily deep broadcast-from-listener chains
// off the Go call stack.
//
// trampoline owns its own lock rather than relying on a caller's lock:
// handlers must run with no lock held so a listener is free to call back
// into the owning Relay (register a new listener, submit a further
// broadcast) without deadlocking on a non-reentrant mutex.
type trampoline struct {
	mu       sync.Mutex
	handlers map[string][]func(peer PeerID, args []any)
	running  map[string]bool
	pending  map[string][]pendingTrigger
}

type pendingTrigger struct {
	peer PeerID
	args []any
}

func newTrampoline() *trampoline {
	return &trampoline{
		handlers: make(map[string][]func(peer PeerID, args []any)),
		running:  make(map[string]bool),
		pending:  make(map[string][]pendingTrigger),
	}
}

func (tr *trampoline) register(event string, handler func(peer PeerID, args []any)) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.handlers[event] = append(tr.handlers[event], handler)
}

// trigger invokes every listener registered for event with (peer, args).
// If a listener nested inside this call triggers the same event again,
// that nested call enqueues rather than recursing; once the outermost
// call's handler list finishes, it drains the queue breadth-first. No
// lock is held while handlers run, so a handler may itself call trigger
// or register, whether for this event or any other, without deadlocking.
func (tr *trampoline) trigger(event string, peer PeerID, args []any) {
	tr.mu.Lock()
	if tr.running[event] {
		tr.pending[event] = append(tr.pending[event], pendingTrigger{peer: peer, args: args})
		tr.mu.Unlock()
		return
	}
	tr.running[event] = true
	tr.mu.Unlock()

	tr.runOnce(event, peer, args)
	for {
		tr.mu.Lock()
		round := tr.pending[event]
		tr.pending[event] = nil
		tr.mu.Unlock()
		if len(round) == 0 {
			break
		}
		for _, p := range round {
			tr.runOnce(event, p.peer, p.args)
		}
	}

	tr.mu.Lock()
	tr.running[event] = false
	tr.mu.Unlock()
}

func (tr *trampoline) runOnce(event string, peer PeerID, args []any) {
	tr.mu.Lock()
	handlers := append([]func(peer PeerID, args []any){}, tr.handlers[event]...)
	tr.mu.Unlock()
	for _, h := range handlers {
		h(peer, args)
	}
}
