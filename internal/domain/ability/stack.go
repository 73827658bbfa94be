package ability

import "sync"

// Stack orders records by foreground precedence. It holds references only;
// the List owns the records, so removal from the List must be preceded by
// Erase here.
type Stack struct {
	mu      sync.RWMutex
	entries []*Record // Protected by mu, last element is the top
}

// NewStack creates an empty foreground stack
func NewStack() *Stack {
	return &Stack{}
}

// Push places rec on top. A record already on the stack is moved instead.
func (s *Stack) Push(rec *Record) {
	if rec == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(rec.Token); i >= 0 {
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
	}
	s.entries = append(s.entries, rec)
}

// Pop removes and returns the top record
func (s *Stack) Pop() *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	if n == 0 {
		return nil
	}
	top := s.entries[n-1]
	s.entries[n-1] = nil
	s.entries = s.entries[:n-1]
	return top
}

// Top returns the current foreground candidate
func (s *Stack) Top() *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n := len(s.entries); n > 0 {
		return s.entries[n-1]
	}
	return nil
}

// Erase removes rec wherever it sits
func (s *Stack) Erase(rec *Record) bool {
	if rec == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(rec.Token)
	if i < 0 || s.entries[i] != rec {
		return false
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return true
}

// MoveToTop moves the entry with token to the top under a single lock
func (s *Stack) MoveToTop(token uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(token)
	if i < 0 {
		return false
	}
	rec := s.entries[i]
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	s.entries = append(s.entries, rec)
	return true
}

// Size returns the stack depth
func (s *Stack) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

func (s *Stack) indexLocked(token uint16) int {
	for i, rec := range s.entries {
		if rec.Token == token {
			return i
		}
	}
	return -1
}
