// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elgpu

import "github.com/goki/ki/kit"

// Topologies are the supported vertex topologies for pipeline input
// assembly.  Drivers map these onto their native topology values.
type Topologies int32

const (
	PointList Topologies = iota
	LineList
	LineStrip
	TriangleList
	TriangleStrip
	TriangleFan
	TopologiesN
)

//go:generate stringer -type=Topologies

var KiT_Topologies = kit.Enums.AddEnum(TopologiesN, kit.NotBitFlag, nil)

// ShaderTypes is a list of GPU shader stages.
type ShaderTypes int32

const (
	VertexShader ShaderTypes = iota
	TessCtrlShader
	TessEvalShader
	GeometryShader
	FragmentShader
	ComputeShader
	ShaderTypesN
)

//go:generate stringer -type=ShaderTypes

var KiT_ShaderTypes = kit.Enums.AddEnum(ShaderTypesN, kit.NotBitFlag, nil)
