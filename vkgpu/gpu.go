// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"errors"
	"log/slog"

	"github.com/elements-gfx/elgpu"
	vk "github.com/goki/vulkan"
)

// Debug enables the Khronos validation layer on the instance and the
// device.  Set before calling GPU.Config.
var Debug = false

// GPU represents the Vulkan instance and the selected physical device.
// One GPU serves all surfaces and drivers of the process.
type GPU struct {
	Instance vk.Instance
	GPU      vk.PhysicalDevice

	// DeviceName is the name of the selected physical device.
	DeviceName string

	// DeviceExts are extensions enabled on the logical device;
	// the swapchain extension is always included.
	DeviceExts []string

	// InstanceExts are extensions enabled on the instance; the
	// window system's required extensions must be added before Config.
	InstanceExts []string

	// ValidationLayers are the layers enabled when Debug is set.
	ValidationLayers []string

	GPUProperties vk.PhysicalDeviceProperties
	MemoryProps   vk.PhysicalDeviceMemoryProperties
}

// NewGPU returns a new GPU with default settings.
func NewGPU() *GPU {
	gp := &GPU{}
	gp.Defaults()
	return gp
}

func (gp *GPU) Defaults() {
	gp.DeviceExts = append(gp.DeviceExts, SafeString(vk.KhrSwapchainExtensionName))
}

// AddInstanceExt adds instance extensions to enable, e.g. those
// required by the window system (glfw's GetRequiredInstanceExtensions).
// Must be called before Config.
func (gp *GPU) AddInstanceExt(exts ...string) {
	for _, ext := range exts {
		gp.InstanceExts = append(gp.InstanceExts, SafeString(ext))
	}
}

// AddDeviceExt adds device extensions to enable, beyond the swapchain
// extension that is always on.  Must be called before Config.
func (gp *GPU) AddDeviceExt(exts ...string) {
	for _, ext := range exts {
		gp.DeviceExts = append(gp.DeviceExts, SafeString(ext))
	}
}

// Config creates the Vulkan instance under the given application name
// and selects the best available physical device.  vkgpu.Init must have
// been called first.
func (gp *GPU) Config(name string) error {
	if Debug {
		gp.ValidationLayers = instanceLayers("VK_LAYER_KHRONOS_validation")
	}

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			PApplicationName:   SafeString(name),
			ApplicationVersion: vk.MakeVersion(1, 0, 0),
			PEngineName:        "elgpu\x00",
			EngineVersion:      vk.MakeVersion(1, 0, 0),
			ApiVersion:         vk.ApiVersion11,
		},
		EnabledExtensionCount:   uint32(len(gp.InstanceExts)),
		PpEnabledExtensionNames: gp.InstanceExts,
		EnabledLayerCount:       uint32(len(gp.ValidationLayers)),
		PpEnabledLayerNames:     gp.ValidationLayers,
	}, nil, &instance)
	if err := NewError(ret); err != nil {
		return err
	}
	gp.Instance = instance
	vk.InitInstance(instance)

	if err := gp.SelectDevice(); err != nil {
		gp.Destroy()
		return err
	}
	vk.GetPhysicalDeviceMemoryProperties(gp.GPU, &gp.MemoryProps)
	gp.MemoryProps.Deref()
	elgpu.Logger().Info("gpu configured",
		slog.String("device", gp.DeviceName),
		slog.Bool("validation", Debug))
	return nil
}

// SelectDevice picks the highest ranked physical device: discrete,
// then integrated, then virtual, then cpu.
func (gp *GPU) SelectDevice() error {
	var devCount uint32
	ret := vk.EnumeratePhysicalDevices(gp.Instance, &devCount, nil)
	if err := NewError(ret); err != nil {
		return err
	}
	if devCount == 0 {
		return errors.New("vkgpu: no Vulkan devices found")
	}
	devs := make([]vk.PhysicalDevice, devCount)
	ret = vk.EnumeratePhysicalDevices(gp.Instance, &devCount, devs)
	if err := NewError(ret); err != nil {
		return err
	}

	best := -1
	bestScore := -1
	var bestProps vk.PhysicalDeviceProperties
	for i, dev := range devs {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(dev, &props)
		props.Deref()
		score := deviceTypeScore(props.DeviceType)
		if score > bestScore {
			best = i
			bestScore = score
			bestProps = props
		}
	}
	gp.GPU = devs[best]
	gp.GPUProperties = bestProps
	gp.DeviceName = vk.ToString(bestProps.DeviceName[:])
	return nil
}

func deviceTypeScore(dt vk.PhysicalDeviceType) int {
	switch dt {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return 4
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return 3
	case vk.PhysicalDeviceTypeVirtualGpu:
		return 2
	case vk.PhysicalDeviceTypeCpu:
		return 1
	}
	return 0
}

// FindMemoryType returns the index of a memory type matching typeBits
// and having all the given property flags.
func (gp *GPU) FindMemoryType(typeBits uint32, props vk.MemoryPropertyFlagBits) (uint32, error) {
	required := vk.MemoryPropertyFlags(props)
	for i := uint32(0); i < gp.MemoryProps.MemoryTypeCount; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		gp.MemoryProps.MemoryTypes[i].Deref()
		if gp.MemoryProps.MemoryTypes[i].PropertyFlags&required == required {
			return i, nil
		}
	}
	return 0, errors.New("vkgpu: no suitable memory type found")
}

func (gp *GPU) Destroy() {
	if gp.Instance != nil {
		vk.DestroyInstance(gp.Instance, nil)
		gp.Instance = nil
	}
}

// instanceLayers returns the subset of the given layer names that the
// instance actually supports, null terminated for the C API.
func instanceLayers(names ...string) []string {
	var layerCount uint32
	vk.EnumerateInstanceLayerProperties(&layerCount, nil)
	layers := make([]vk.LayerProperties, layerCount)
	vk.EnumerateInstanceLayerProperties(&layerCount, layers)
	var out []string
	for _, want := range names {
		for i := range layers {
			layers[i].Deref()
			if vk.ToString(layers[i].LayerName[:]) == want {
				out = append(out, SafeString(want))
				break
			}
		}
	}
	return out
}

// SafeString returns s null terminated for passing to the C API.
func SafeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\x00' {
		return s + "\x00"
	}
	return s
}
