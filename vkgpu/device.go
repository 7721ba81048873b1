// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"errors"

	vk "github.com/goki/vulkan"
)

// Device is the logical device and its graphics queue.  A single queue
// family that supports both graphics and presentation to the target
// surface is required; separate graphics and present queues are not
// supported.
type Device struct {
	Device     vk.Device
	QueueIndex uint32
	Queue      vk.Queue
}

// Init finds a queue family that supports graphics and presenting to
// the given surface, then creates the logical device and queue.
func (dv *Device) Init(gp *GPU, surface vk.Surface) error {
	err := dv.FindQueue(gp, surface)
	if err != nil {
		return err
	}
	return dv.MakeDevice(gp)
}

// FindQueue finds a queue family with graphics capability that can
// present to surface, setting QueueIndex.
func (dv *Device) FindQueue(gp *GPU, surface vk.Surface) error {
	var queueCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gp.GPU, &queueCount, nil)
	queueProperties := make([]vk.QueueFamilyProperties, queueCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(gp.GPU, &queueCount, queueProperties)
	if queueCount == 0 {
		return errors.New("vkgpu: no queue families found on device")
	}

	required := vk.QueueFlags(vk.QueueGraphicsBit)
	for i := uint32(0); i < queueCount; i++ {
		queueProperties[i].Deref()
		if queueProperties[i].QueueFlags&required == 0 {
			continue
		}
		var supportsPresent vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(gp.GPU, i, surface, &supportsPresent)
		if supportsPresent.B() {
			dv.QueueIndex = i
			return nil
		}
	}
	return errors.New("vkgpu: no queue family supports both graphics and present")
}

// MakeDevice creates the logical device and queue from QueueIndex.
func (dv *Device) MakeDevice(gp *GPU) error {
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: dv.QueueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	var device vk.Device
	ret := vk.CreateDevice(gp.GPU, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(gp.DeviceExts)),
		PpEnabledExtensionNames: gp.DeviceExts,
		EnabledLayerCount:       uint32(len(gp.ValidationLayers)),
		PpEnabledLayerNames:     gp.ValidationLayers,
	}, nil, &device)
	if err := NewError(ret); err != nil {
		return err
	}
	dv.Device = device

	var queue vk.Queue
	vk.GetDeviceQueue(dv.Device, dv.QueueIndex, 0, &queue)
	dv.Queue = queue
	return nil
}

func (dv *Device) Destroy() {
	if dv.Device == nil {
		return
	}
	vk.DeviceWaitIdle(dv.Device)
	vk.DestroyDevice(dv.Device, nil)
	dv.Device = nil
}
