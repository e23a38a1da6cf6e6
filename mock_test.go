package formrules_test

import (
	"fmt"
	"sync"
)

// -------------------------------------------------- MOCK EVALUATOR
// mockEvaluator is used for testing.
// It answers conditions from a fixed table and captures which
// expressions were evaluated, in order.
type mockEvaluator struct {
	mu sync.Mutex

	// conditions that hold; everything else is false
	truths map[string]bool

	// every expression passed to Bool
	calls []string
}

func newMockEvaluator(truths ...string) *mockEvaluator {
	m := &mockEvaluator{truths: map[string]bool{}}
	for _, t := range truths {
		m.truths[t] = true
	}
	return m
}

// The mockEvaluator knows the literal `true`, plus any expression it was
// constructed with.
func (m *mockEvaluator) Bool(expression string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, expression)
	return expression == "true" || m.truths[expression]
}

func (m *mockEvaluator) count(expression string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == expression {
			n++
		}
	}
	return n
}

func (m *mockEvaluator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *mockEvaluator) PrintCalls() {
	for _, c := range m.calls {
		fmt.Println("evaluated", c)
	}
}
