package event

import (
	"encoding/json"
	"io"
	"sync"
)

// JSONLines writes one JSON envelope per line.
type JSONLines struct {
	mu      sync.Mutex
	encoder *json.Encoder
	err     error
}

func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{encoder: json.NewEncoder(w)}
}

func (s *JSONLines) Emit(name string, payload any) {
	_ = s.Write(NewEnvelope(name, payload))
}

// Write encodes envelope. After the first write error every later call
// returns that error without writing.
func (s *JSONLines) Write(envelope Envelope) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if err := s.encoder.Encode(envelope); err != nil {
		s.err = err
		return err
	}
	return nil
}

func (s *JSONLines) Err() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
