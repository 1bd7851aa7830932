package macro

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

const segmentSeparator = "[end]"

// Script holds presentation text split into segments on "[end]". Next hands
// them out in order and wraps around after the last one.
type Script struct {
	mu       sync.Mutex
	path     string
	segments []string
	next     int
}

func ParseScript(text string) *Script {
	s := &Script{}
	s.set(text)
	return s
}

// LoadScript reads a script file.
func LoadScript(path string) (*Script, error) {
	s := &Script{}
	if err := s.Load(path); err != nil {
		return nil, err
	}
	return s, nil
}

// Load replaces the segments with the contents of path and rewinds.
func (s *Script) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script %s: %w", path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
	s.set(string(data))
	return nil
}

func (s *Script) set(text string) {
	s.segments = s.segments[:0]
	for _, seg := range strings.Split(text, segmentSeparator) {
		if seg = strings.TrimSpace(seg); seg != "" {
			s.segments = append(s.segments, seg)
		}
	}
	s.next = 0
}

// Next returns the next segment. ok is false for an empty script.
func (s *Script) Next() (segment string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.segments) == 0 {
		return "", false
	}
	segment = s.segments[s.next]
	s.next = (s.next + 1) % len(s.segments)
	return segment, true
}

func (s *Script) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.segments)
}

func (s *Script) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}
