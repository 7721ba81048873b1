// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This is initially adapted from https://github.com/vulkan-go/asche
// Copyright © 2017 Maxim Kupriianov <max@kc.vc>, under the MIT License

package vkgpu

import (
	"fmt"
	"path/filepath"
	"runtime"

	vk "github.com/goki/vulkan"
)

func IsError(ret vk.Result) bool {
	return ret != vk.Success
}

func NewError(ret vk.Result) error {
	if ret != vk.Success {
		pc, _, _, ok := runtime.Caller(1)
		if !ok {
			return fmt.Errorf("vulkan error: %s (%d)",
				vk.Error(ret).Error(), ret)
		}
		frame := newStackFrame(pc)
		return fmt.Errorf("vulkan error: %s (%d) on %s",
			vk.Error(ret).Error(), ret, frame.String())
	}
	return nil
}

func IfPanic(err error, finalizers ...func()) {
	if err != nil {
		for _, fn := range finalizers {
			fn()
		}
		panic(err)
	}
}

func CheckErr(err *error) {
	if v := recover(); v != nil {
		*err = fmt.Errorf("%+v", v)
	}
}

type stackFrame struct {
	function string
	file     string
	line     int
}

func newStackFrame(pc uintptr) stackFrame {
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return stackFrame{function: "unknown"}
	}
	file, line := fn.FileLine(pc)
	return stackFrame{function: fn.Name(), file: file, line: line}
}

func (f stackFrame) String() string {
	return fmt.Sprintf("%s:%d %s", filepath.Base(f.file), f.line, f.function)
}
