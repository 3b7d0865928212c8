package chain

import "sync"

// signerLock serializes every transaction-producing call against a single
// chain's hot wallet. The operator wallet is shared across all releases and
// refunds on a chain; without this lock two concurrent releases could fetch
// the same pending nonce and race each other onto the network.
type signerLock struct {
	mu sync.Mutex
}

func newSignerLock() *signerLock {
	return &signerLock{}
}

func (s *signerLock) Lock()   { s.mu.Lock() }
func (s *signerLock) Unlock() { s.mu.Unlock() }
