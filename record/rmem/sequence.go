package rmem

import "sync/atomic"

// Sequence is a process-local monotonic counter, standing in for the
// "one backend database per sequence with a single well-known key"
// layout spec §6.3 describes for a real backend.
type Sequence struct {
	env     *Environment
	key     string
	counter int64
}

func (s *Sequence) Next() (int64, error) {
	return atomic.AddInt64(&s.counter, 1), nil
}

func (s *Sequence) Delete() error {
	s.env.mu.Lock()
	delete(s.env.sequences, s.key)
	s.env.mu.Unlock()
	return nil
}
