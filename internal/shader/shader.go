// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shader compiles WGSL pass shaders to SPIR-V for backends that
// only consume SPIR-V.
package shader

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/naga"
)

// Magic is the first word of every SPIR-V module.
const Magic = 0x07230203

// ErrInvalidSPIRV is returned for byte code that is not a SPIR-V module.
var ErrInvalidSPIRV = errors.New("shader: invalid SPIR-V")

// Compile translates WGSL source to SPIR-V words.
func Compile(wgsl string) ([]uint32, error) {
	b, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("shader: compile: %w", err)
	}
	return Words(b)
}

// Words converts little-endian SPIR-V bytes to words.
func Words(b []byte) ([]uint32, error) {
	if len(b) < 4 || len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidSPIRV, len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	if words[0] != Magic {
		return nil, fmt.Errorf("%w: magic %#08x", ErrInvalidSPIRV, words[0])
	}
	return words, nil
}

// Cache memoizes compiled modules by source hash.
//
// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	modules map[[sha256.Size]byte][]uint32
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{modules: make(map[[sha256.Size]byte][]uint32)}
}

// Compile returns the cached SPIR-V of wgsl, compiling it on first use.
func (c *Cache) Compile(wgsl string) ([]uint32, error) {
	key := sha256.Sum256([]byte(wgsl))
	c.mu.Lock()
	words, ok := c.modules[key]
	c.mu.Unlock()
	if ok {
		return words, nil
	}

	words, err := Compile(wgsl)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.modules[key] = words
	c.mu.Unlock()
	return words, nil
}

// Len returns the number of cached modules.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.modules)
}
