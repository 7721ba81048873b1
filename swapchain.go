// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elgpu

import (
	"image"
	"log/slog"
	"time"
)

// AcquiredImage identifies one swapchain image handed out by Acquire,
// stamped with the generation it came from.  Present rejects images
// whose generation no longer matches the live swapchain.
type AcquiredImage struct {
	Index      int
	Generation uint64
}

// SwapchainManager owns the driver swapchain and its recreation
// lifecycle.  Every recreation bumps a generation counter; acquired
// images carry the generation they were issued under, which makes stale
// presents detectable instead of silently wrong.
type SwapchainManager struct {
	dv   Driver
	sc   Swapchain
	gen  uint64
	size image.Point
}

// NewSwapchainManager creates the initial swapchain at the given size,
// which is generation 1.
func NewSwapchainManager(dv Driver, size image.Point) (*SwapchainManager, error) {
	sc, err := dv.NewSwapchain(size)
	if err != nil {
		return nil, err
	}
	sm := &SwapchainManager{dv: dv, sc: sc, gen: 1, size: size}
	Logger().Info("swapchain created",
		slog.Int("width", size.X), slog.Int("height", size.Y),
		slog.Int("images", sc.ImageCount()))
	return sm, nil
}

// Generation returns the current swapchain generation.  It starts at 1
// and increments on every Recreate.
func (sm *SwapchainManager) Generation() uint64 {
	return sm.gen
}

// Size returns the current swapchain extent.
func (sm *SwapchainManager) Size() image.Point {
	return sm.size
}

// ImageCount returns the number of images in the current swapchain.
func (sm *SwapchainManager) ImageCount() int {
	return sm.sc.ImageCount()
}

// Swapchain returns the live driver swapchain.  The returned value is
// invalidated by Recreate.
func (sm *SwapchainManager) Swapchain() Swapchain {
	return sm.sc
}

// Acquire gets the next presentable image, stamped with the current
// generation.  ErrSuboptimal may accompany a usable image; the caller
// decides whether to render anyway.  ErrOutOfDate means no image was
// issued and the swapchain must be recreated.
func (sm *SwapchainManager) Acquire(timeout time.Duration, imageAvailable Semaphore) (AcquiredImage, error) {
	idx, err := sm.sc.Acquire(timeout, imageAvailable)
	if err != nil && err != ErrSuboptimal {
		return AcquiredImage{}, err
	}
	return AcquiredImage{Index: idx, Generation: sm.gen}, err
}

// Present hands the image back for presentation, gated on renderDone.
// An image from a previous generation returns ErrStaleAcquire without
// touching the driver.
func (sm *SwapchainManager) Present(img AcquiredImage, renderDone Semaphore) error {
	if img.Generation != sm.gen {
		return ErrStaleAcquire
	}
	return sm.dv.Present(sm.sc, img.Index, renderDone)
}

// Recreate rebuilds the swapchain at the given extent and bumps the
// generation.  The caller must have drained all in-flight work that
// references the current generation; a zero dimension is rejected with
// ErrMinimized so the caller defers until the surface has area again.
func (sm *SwapchainManager) Recreate(size image.Point) error {
	if size.X <= 0 || size.Y <= 0 {
		return ErrMinimized
	}
	if err := sm.sc.Recreate(size); err != nil {
		return err
	}
	sm.gen++
	sm.size = size
	Logger().Info("swapchain recreated",
		slog.Int("width", size.X), slog.Int("height", size.Y),
		slog.Uint64("generation", sm.gen))
	return nil
}

// Destroy releases the driver swapchain.  Idempotent.
func (sm *SwapchainManager) Destroy() {
	if sm.sc != nil {
		sm.sc.Destroy()
		sm.sc = nil
	}
}
