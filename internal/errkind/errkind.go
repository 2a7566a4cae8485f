// Package errkind defines the two error categories surfaced by the
// simulator: configuration errors raised while constructing agents or a
// simulation, and provider errors raised by a chat completion call.
package errkind

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks invalid models, visit types, traits, templates
	// or missing credentials. Always raised at construction time.
	ErrConfiguration = errors.New("configuration error")
	// ErrProvider marks any failure of a chat completion call.
	ErrProvider = errors.New("provider call failed")
)

// Configf builds an error that matches ErrConfiguration with errors.Is.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// ProviderError wraps a failed completion call. Sub-cases such as auth
// failures or rate limits are not distinguished.
type ProviderError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("%s: %s (%s): %v", ErrProvider, e.Provider, e.Model, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrProvider, e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrProvider) match any ProviderError.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// Provider wraps err as a ProviderError unless it already is one.
func Provider(provider, model string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Model: model, Err: err}
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsProvider reports whether err came from a provider call.
func IsProvider(err error) bool {
	return errors.Is(err, ErrProvider)
}
