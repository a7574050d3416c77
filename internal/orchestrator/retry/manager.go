// Package retry provides retry state management for project synchronization.
//
// This package tracks failed attempts per project, decides how long the next
// attempt has to wait, and marks projects stuck once a configured retry cap
// is exhausted. Without a cap a project is retried until it succeeds.
package retry

import (
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy configures retries.
type Policy struct {
	// MaxRetries caps the retries after the first attempt. 0 means unbounded.
	MaxRetries int
	// InitialDelay is the wait before the first retry. 0 retries immediately.
	InitialDelay time.Duration
	// MaxDelay caps the exponential growth of the delay.
	MaxDelay time.Duration
	// Randomization is the jitter factor applied to every delay (0 = none).
	Randomization float64
}

// TaskState tracks retry attempts for a project.
type TaskState struct {
	Project    string          `json:"project"`
	Failures   int             `json:"failures"`
	MaxRetries int             `json:"max_retries"`
	LastError  string          `json:"last_error,omitempty"`
	Delays     []time.Duration `json:"delays,omitempty"` // Delay chosen after each failure
	Succeeded  bool            `json:"succeeded,omitempty"`
	Stuck      bool            `json:"stuck,omitempty"`

	backoff *backoff.ExponentialBackOff
}

// Manager manages retry state for projects.
// It is thread-safe and can be used concurrently.
type Manager struct {
	mu     sync.RWMutex
	policy Policy
	states map[string]*TaskState
}

// NewManager creates a new retry manager.
func NewManager(policy Policy) *Manager {
	return &Manager{
		policy: policy,
		states: make(map[string]*TaskState),
	}
}

func (m *Manager) getOrCreate(project string) *TaskState {
	state, exists := m.states[project]
	if !exists {
		state = &TaskState{
			Project:    project,
			MaxRetries: m.policy.MaxRetries,
		}
		m.states[project] = state
	}
	return state
}

// RecordFailure records a failed attempt with its error text. It returns the
// delay before the next attempt and whether the project is now stuck.
func (m *Manager) RecordFailure(project, errText string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.getOrCreate(project)
	state.Failures++
	state.LastError = errText

	if state.MaxRetries > 0 && state.Failures > state.MaxRetries {
		state.Stuck = true
		return 0, true
	}

	delay := m.nextDelay(state)
	state.Delays = append(state.Delays, delay)
	return delay, false
}

func (m *Manager) nextDelay(state *TaskState) time.Duration {
	if m.policy.InitialDelay <= 0 {
		return 0
	}
	if state.backoff == nil {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = m.policy.InitialDelay
		b.RandomizationFactor = m.policy.Randomization
		if m.policy.MaxDelay > 0 {
			b.MaxInterval = m.policy.MaxDelay
		}
		state.backoff = b
	}
	delay := state.backoff.NextBackOff()
	if delay < 0 {
		delay = state.backoff.MaxInterval
	}
	return delay
}

// RecordSuccess marks the project as succeeded; it will not be retried.
func (m *Manager) RecordSuccess(project string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.getOrCreate(project)
	state.Succeeded = true
	if state.backoff != nil {
		state.backoff.Reset()
	}
}

// GetStuckTasks returns the projects that exhausted their retries, sorted.
func (m *Manager) GetStuckTasks() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stuck []string
	for project, state := range m.states {
		if state.Stuck {
			stuck = append(stuck, project)
		}
	}
	sort.Strings(stuck)
	return stuck
}

// GetRetryingTasks returns the projects that failed and are still eligible
// for retry, sorted.
func (m *Manager) GetRetryingTasks() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var retrying []string
	for project, state := range m.states {
		if state.Failures > 0 && !state.Succeeded && !state.Stuck {
			retrying = append(retrying, project)
		}
	}
	sort.Strings(retrying)
	return retrying
}

// GetAllStates returns a copy of all retry states.
func (m *Manager) GetAllStates() map[string]*TaskState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]*TaskState, len(m.states))
	for k, v := range m.states {
		stateCopy := *v
		stateCopy.backoff = nil
		if v.Delays != nil {
			stateCopy.Delays = make([]time.Duration, len(v.Delays))
			copy(stateCopy.Delays, v.Delays)
		}
		result[k] = &stateCopy
	}
	return result
}
