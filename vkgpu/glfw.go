// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build (darwin && !ios) || windows || (linux && !android) || dragonfly || openbsd

package vkgpu

import (
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
)

// note: this file contains the glfw dependencies, for desktop platform builds.
// other platforms (mobile, web) need to provide their own Init() and Terminate().

// Init initializes the Vulkan loader for display use, via glfw.
// Must be called before any other vkgpu call.
// IMPORTANT: must be called on the main initial thread!
func Init() error {
	if err := glfw.Init(); err != nil {
		return err
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	return vk.Init()
}

// Terminate shuts down the window system -- call as last thing before
// quitting.
// IMPORTANT: must be called on the main initial thread!
func Terminate() {
	glfw.Terminate()
}
