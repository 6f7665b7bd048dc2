// Package shader holds the sources of the hellotriangle sample.
//
// Both languages declare the same interface: a transform matrix and a tint
// color as uniforms and a checker texture. The triangle's corners come from
// the vertex index, so no vertex buffers or attributes are needed.
package shader

import "fmt"

// Language is a source language the engine has a compiler for.
type Language int

const (
	// GLSLES is WebGL 2 flavored GLSL ES 3.00, compiled by the translator
	// package for the GL device.
	GLSLES Language = iota
	// WGSL is compiled by the compiler/wgsl package.
	WGSL
)

func (l Language) String() string {
	switch l {
	case GLSLES:
		return "glsles"
	case WGSL:
		return "wgsl"
	}
	return fmt.Sprintf("Language(%d)", int(l))
}

// Uniform and sampler names shared by every source.
const (
	TransformUniform = "transform"
	TintUniform      = "tint"
	CheckerSampler   = "checker"
)

// ────────────────────────────────── GLSL ES ──────────────────────────────────

const vertexShaderSourceGLES = `#version 300 es
precision highp float;

uniform mat4 transform;

out vec2 frag_uv;

const vec2 corners[3] = vec2[3](
    vec2( 0.0,  0.6),
    vec2(-0.6, -0.5),
    vec2( 0.6, -0.5)
);

void main() {
    vec2 p = corners[gl_VertexID];
    frag_uv = p * 0.5 + 0.5;
    gl_Position = transform * vec4(p, 0.0, 1.0);
}
`

const fragmentShaderSourceGLES = `#version 300 es
precision mediump float;

uniform vec4 tint;
uniform sampler2D checker;

in vec2 frag_uv;
out vec4 fragColor;

void main() {
    fragColor = texture(checker, frag_uv * 4.0) * tint;
}
`

// ─────────────────────────────────── WGSL ────────────────────────────────────

const sourceWGSL = `struct Globals {
    transform: mat4x4<f32>,
    tint: vec4<f32>,
}

@group(0) @binding(0) var<uniform> globals: Globals;
@group(0) @binding(1) var checker: texture_2d<f32>;
@group(0) @binding(2) var checker_sampler: sampler;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOutput {
    var corners = array<vec2<f32>, 3>(
        vec2<f32>(0.0, 0.6),
        vec2<f32>(-0.6, -0.5),
        vec2<f32>(0.6, -0.5)
    );
    let p = corners[index];
    var output: VertexOutput;
    output.position = globals.transform * vec4<f32>(p, 0.0, 1.0);
    output.uv = p * 0.5 + 0.5;
    return output;
}

@fragment
fn fs_main(input: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(checker, checker_sampler, input.uv * 4.0) * globals.tint;
}
`

// ───────────────────────────────── Public API ────────────────────────────────

// VertexSource returns the vertex stage source in lang.
func VertexSource(lang Language) string {
	if lang == WGSL {
		return sourceWGSL
	}
	return vertexShaderSourceGLES
}

// FragmentSource returns the fragment stage source in lang. WGSL keeps both
// entry points in one module.
func FragmentSource(lang Language) string {
	if lang == WGSL {
		return sourceWGSL
	}
	return fragmentShaderSourceGLES
}
