// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elgpu_test

import (
	"image"
	"testing"

	"github.com/elements-gfx/elgpu"
	"github.com/elements-gfx/elgpu/simgpu"
	"github.com/goki/mat32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRecorderRecordsDrawList(t *testing.T) {
	dv := simgpu.New()
	sc, err := dv.NewSwapchain(image.Point{640, 480})
	require.NoError(t, err)
	defer sc.Destroy()

	h1, err := dv.RegisterPipeline(&elgpu.PipelineSpec{Name: "bg"})
	require.NoError(t, err)
	h2, err := dv.RegisterPipeline(&elgpu.PipelineSpec{Name: "fg", PushBytes: 8})
	require.NoError(t, err)
	handles := map[string]elgpu.PipelineHandle{"bg": h1, "fg": h2}
	lookup := func(name string) (elgpu.PipelineHandle, bool) {
		h, ok := handles[name]
		return h, ok
	}

	cr := elgpu.NewCommandRecorder(mat32.NewVec4(0, 0, 0, 1), lookup)
	cb, err := dv.NewCommandBuffer()
	require.NoError(t, err)

	dl := &elgpu.DrawList{}
	dl.Add(elgpu.Draw{Pipeline: "bg", VertexCount: 3, InstanceCount: 1})
	dl.Add(elgpu.Draw{Pipeline: "bg", VertexCount: 3, InstanceCount: 1, FirstVertex: 3})
	dl.Add(elgpu.Draw{Pipeline: "fg", Push: []byte{1, 2, 3, 4}, VertexCount: 6, InstanceCount: 2})

	require.NoError(t, cr.Record(cb, sc, 1, dl))

	scb := cb.(*simgpu.CmdBuffer)
	assert.Equal(t, 3, scb.DrawCount())

	var ops []string
	for _, op := range scb.Ops {
		ops = append(ops, op.Op)
	}
	// Consecutive draws on the same pipeline share one bind.
	assert.Equal(t, []string{"beginpass", "bind", "draw", "draw", "bind", "push", "draw", "endpass"}, ops)
	assert.Equal(t, 1, scb.Ops[0].Image)
}

func TestCommandRecorderUnknownPipeline(t *testing.T) {
	dv := simgpu.New()
	sc, err := dv.NewSwapchain(image.Point{640, 480})
	require.NoError(t, err)
	defer sc.Destroy()

	cr := elgpu.NewCommandRecorder(mat32.NewVec4(0, 0, 0, 1), func(string) (elgpu.PipelineHandle, bool) {
		return elgpu.NilPipeline, false
	})
	cb, err := dv.NewCommandBuffer()
	require.NoError(t, err)

	dl := &elgpu.DrawList{}
	dl.Add(elgpu.Draw{Pipeline: "ghost", VertexCount: 3})
	err = cr.Record(cb, sc, 0, dl)
	require.ErrorIs(t, err, elgpu.ErrUnknownPipeline)
	var re *elgpu.RecordError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "ghost", re.Pipeline)
}

func TestDrawListReset(t *testing.T) {
	dl := &elgpu.DrawList{}
	dl.Add(elgpu.Draw{Pipeline: "a"}).Add(elgpu.Draw{Pipeline: "b"})
	assert.Len(t, dl.Draws, 2)
	dl.Reset()
	assert.Len(t, dl.Draws, 0)
}
