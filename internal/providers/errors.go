// Package providers implements the model provider router: a single
// blocking generate() contract in front of several concrete LLM backends,
// auto-detected in a fixed probing order when no backend is pinned.
package providers

import "fmt"

// GenerationFailedError is the router's single failure mode: whatever went
// wrong talking to a backend is folded into one reason string, per the
// spec's no-retry, no-partial-result contract.
type GenerationFailedError struct {
	Backend string
	Reason  string
}

func (e *GenerationFailedError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("generation failed (%s): %s", e.Backend, e.Reason)
	}
	return fmt.Sprintf("generation failed: %s", e.Reason)
}

func generationFailed(backend string, cause error) *GenerationFailedError {
	return &GenerationFailedError{Backend: backend, Reason: cause.Error()}
}
