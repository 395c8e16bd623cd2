package app

import (
	"strings"
	"sync"
)

// StyleSheet accumulates component CSS during one render
type StyleSheet struct {
	mu    sync.Mutex
	order []string
	rules map[string]string
}

func NewStyleSheet() *StyleSheet {
	return &StyleSheet{rules: make(map[string]string)}
}

// Add registers css for component once; later calls for the same component are ignored
func (s *StyleSheet) Add(component, css string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[component]; ok {
		return
	}
	s.order = append(s.order, component)
	s.rules[component] = strings.TrimSpace(css)
}

// CSS returns the collected rules in registration order
func (s *StyleSheet) CSS() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := make([]string, 0, len(s.order))
	for _, component := range s.order {
		parts = append(parts, s.rules[component])
	}
	return strings.Join(parts, "\n")
}
