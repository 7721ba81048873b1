// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package simgpu

import (
	"sync"
	"time"

	"github.com/elements-gfx/elgpu"
)

// Fence is a CPU-waitable fence on the simulated GPU timeline.  The
// driver signals it when a submission's simulated execution completes.
type Fence struct {
	mu       sync.Mutex
	signaled bool
	ch       chan struct{} // closed on signal, replaced on Reset

	// Waits counts completed Wait calls that actually blocked or
	// observed the signal, for tests asserting fence-gated reuse.
	Waits int
}

func newFence(signaled bool) *Fence {
	f := &Fence{signaled: signaled, ch: make(chan struct{})}
	if signaled {
		close(f.ch)
	}
	return f
}

func (f *Fence) Wait(timeout time.Duration) error {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()
	select {
	case <-ch:
	case <-time.After(timeout):
		return elgpu.ErrTimedOut
	}
	f.mu.Lock()
	f.Waits++
	f.mu.Unlock()
	return nil
}

func (f *Fence) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signaled {
		f.signaled = false
		f.ch = make(chan struct{})
	}
	return nil
}

func (f *Fence) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

// signal marks the fence signaled, waking waiters.  No-op if already
// signaled.
func (f *Fence) signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.signaled {
		f.signaled = true
		close(f.ch)
	}
}

func (f *Fence) Destroy() {}

// Semaphore is a GPU-side signal on the simulated timeline.  The
// simulator tracks signal/wait pairing so tests can assert that every
// submission waited on a semaphore that acquire actually signaled.
type Semaphore struct {
	mu       sync.Mutex
	signaled bool
}

func newSemaphore() *Semaphore { return &Semaphore{} }

func (s *Semaphore) signal() {
	s.mu.Lock()
	s.signaled = true
	s.mu.Unlock()
}

// consume takes the pending signal, reporting whether one was there.
func (s *Semaphore) consume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.signaled
	s.signaled = false
	return was
}

func (s *Semaphore) Destroy() {}
