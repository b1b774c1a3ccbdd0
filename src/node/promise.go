package node

// SyncPromise is resolved once a one shot synchronization ends, with nil if
// it completed or the reason it did not.
type SyncPromise struct {
	RespCh chan error
}

// NewSyncPromise ...
func NewSyncPromise() *SyncPromise {
	return &SyncPromise{
		//buffered so that resolving never blocks the reactor
		RespCh: make(chan error, 1),
	}
}

// Respond resolves the promise. Only the first call has an effect.
func (p *SyncPromise) Respond(err error) {
	select {
	case p.RespCh <- err:
	default:
	}
}
