// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package simgpu

import (
	"errors"

	"github.com/elements-gfx/elgpu"
	"github.com/goki/mat32"
)

// CmdOp is one recorded command, kept as data so tests can inspect
// exactly what a frame recorded.
type CmdOp struct {
	Op       string // "beginpass", "bind", "push", "draw", "endpass"
	Pipeline elgpu.PipelineHandle
	Image    int
	Clear    mat32.Vec4
	Push     []byte
	Vtx      [4]int // vertex count, instance count, first vertex, first instance
}

// CmdBuffer is a recording command buffer that stores its commands as a
// CmdOp list instead of GPU bytecode.
type CmdBuffer struct {
	dv *Driver

	// Ops are the commands recorded since the last Begin.
	Ops []CmdOp

	// Recordings counts Begin calls, for tests asserting buffers are
	// only re-recorded after their fence was observed.
	Recordings int

	recording bool
	inPass    bool
	bound     elgpu.PipelineHandle
	ended     bool
}

func (cb *CmdBuffer) Begin() error {
	cb.Ops = cb.Ops[:0]
	cb.recording = true
	cb.inPass = false
	cb.ended = false
	cb.bound = elgpu.NilPipeline
	cb.Recordings++
	return nil
}

func (cb *CmdBuffer) BeginPass(sc elgpu.Swapchain, imageIndex int, clear mat32.Vec4) error {
	if !cb.recording {
		return errors.New("simgpu: BeginPass outside recording")
	}
	ssc, ok := sc.(*Swapchain)
	if !ok || ssc.dv != cb.dv {
		return errors.New("simgpu: swapchain from a different driver")
	}
	if imageIndex < 0 || imageIndex >= ssc.ImageCount() {
		return errors.New("simgpu: image index out of range")
	}
	cb.inPass = true
	cb.Ops = append(cb.Ops, CmdOp{Op: "beginpass", Image: imageIndex, Clear: clear})
	return nil
}

func (cb *CmdBuffer) BindPipeline(h elgpu.PipelineHandle) error {
	if !cb.dv.pipelineValid(h) {
		return elgpu.ErrUnknownPipeline
	}
	cb.bound = h
	cb.Ops = append(cb.Ops, CmdOp{Op: "bind", Pipeline: h})
	return nil
}

func (cb *CmdBuffer) Push(data []byte) {
	p := make([]byte, len(data))
	copy(p, data)
	cb.Ops = append(cb.Ops, CmdOp{Op: "push", Pipeline: cb.bound, Push: p})
}

func (cb *CmdBuffer) Draw(vtxCount, instCount, firstVtx, firstInst int) {
	cb.Ops = append(cb.Ops, CmdOp{Op: "draw", Pipeline: cb.bound,
		Vtx: [4]int{vtxCount, instCount, firstVtx, firstInst}})
}

func (cb *CmdBuffer) EndPass() {
	if cb.inPass {
		cb.inPass = false
		cb.Ops = append(cb.Ops, CmdOp{Op: "endpass"})
	}
}

func (cb *CmdBuffer) End() error {
	cb.recording = false
	cb.ended = true
	return nil
}

// DrawCount returns the number of draw commands recorded since the last
// Begin.
func (cb *CmdBuffer) DrawCount() int {
	n := 0
	for _, op := range cb.Ops {
		if op.Op == "draw" {
			n++
		}
	}
	return n
}

func (cb *CmdBuffer) Destroy() {}
