// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/rendergraph/device"
)

// Backend names.
const (
	BackendVulkan = "vulkan"
	BackendHAL    = "hal"
	BackendNoop   = "noop"
)

// ErrBackendNotAvailable is returned when a requested backend is not
// registered or could not open a device.
var ErrBackendNotAvailable = errors.New("backend: not available")

// Factory opens a new device.
type Factory func() (device.Device, error)

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for backend selection (first that opens wins).
	// Vulkan > HAL > Noop (native subpasses first, recording device last).
	backendPriority = []string{BackendVulkan, BackendHAL, BackendNoop}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the sorted names of registered backends.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Open opens a device on the named backend.
func Open(name string) (device.Device, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	dev, err := factory()
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", name, err)
	}
	return dev, nil
}

// Default opens the best available backend based on priority, then any
// other registered backend. A backend whose factory fails is skipped.
func Default() (device.Device, error) {
	registryMu.RLock()
	var extra []string
	for name := range backends {
		if !slices.Contains(backendPriority, name) {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	order := append(slices.Clone(backendPriority), extra...)
	factories := make([]Factory, 0, len(order))
	for _, name := range order {
		if f, ok := backends[name]; ok {
			factories = append(factories, f)
		}
	}
	registryMu.RUnlock()

	var errs []error
	for _, f := range factories {
		dev, err := f()
		if err == nil && dev != nil {
			return dev, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(append([]error{ErrBackendNotAvailable}, errs...)...)
}

// MustDefault returns the default device or panics.
func MustDefault() device.Device {
	dev, err := Default()
	if err != nil {
		panic(err)
	}
	return dev
}
