package policy

// Dedup is the request-scoped duplicate guard for one poll cycle. The
// worker creates a fresh one per cycle and passes it through the
// pipeline explicitly; there is no process-wide state.
type Dedup struct {
	messageIDs map[string]struct{}
	threadKeys map[string]struct{}
}

// NewDedup creates an empty dedup set.
func NewDedup() *Dedup {
	return &Dedup{
		messageIDs: make(map[string]struct{}),
		threadKeys: make(map[string]struct{}),
	}
}

// SeenMessage reports whether the message id was already processed in
// this cycle.
func (d *Dedup) SeenMessage(id string) bool {
	if id == "" {
		return false
	}
	_, ok := d.messageIDs[id]
	return ok
}

// SeenThread reports whether the thread key was already processed in
// this cycle.
func (d *Dedup) SeenThread(key string) bool {
	if key == "" {
		return false
	}
	_, ok := d.threadKeys[key]
	return ok
}

// Mark records a processed (message id, thread key) pair.
func (d *Dedup) Mark(messageID, threadKey string) {
	if messageID != "" {
		d.messageIDs[messageID] = struct{}{}
	}
	if threadKey != "" {
		d.threadKeys[threadKey] = struct{}{}
	}
}
