package model

import (
	"sync"

	"github.com/YuminosukeSato/findhome/pkg/errors"
)

// StateManager manages the fitted state of a composite component in a
// thread-safe manner. Fields are public for gob encoding; the mutex is not
// encoded, so a decoded StateManager starts unlocked.
type StateManager struct {
	Fitted bool
	mu     sync.RWMutex

	NFeatures int
	NSamples  int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the component has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// MarkFitted records a successful fit together with its dimensions.
func (s *StateManager) MarkFitted(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// Reset resets the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NFeatures = 0
	s.NSamples = 0
}

// GetDimensions returns the number of features and samples seen during fitting.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NSamples
}

// RequireFitted returns a FitBeforeApplyError if the component has not been fitted.
func (s *StateManager) RequireFitted(component, method string) error {
	if !s.IsFitted() {
		return errors.NewFitBeforeApplyError(component, method)
	}
	return nil
}

// RequireUnfitted rejects a second fit. Fitted components are read-only.
func (s *StateManager) RequireUnfitted(component string) error {
	if s.IsFitted() {
		return errors.NewValueError(component+".Fit", "already fitted; fitted components are read-only, create a new one to refit")
	}
	return nil
}
