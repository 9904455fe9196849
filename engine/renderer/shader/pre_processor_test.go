package shader

import (
	"strings"
	"testing"
)

func TestPreProcessorProcess(t *testing.T) {
	snippets := map[string]Snippet{
		"camera": {Source: "struct CameraUniform { view_proj: mat4x4<f32> };", Type: "CameraUniform"},
		"light":  {Source: "struct Light { color: vec4<f32> };", Type: "Light"},
	}
	src := strings.Join([]string{
		"//@oxy:include camera",
		"//@oxy:include camera",
		"//@oxy:include light",
		"//@oxy:group 0 0 storage_uniform camera camera",
		"//@oxy:group 0 1 storage_read lights array<light>",
		"//@oxy:group 1 0 handle albedo texture_2d<f32>",
		"//@oxy:param Albedo albedo",
		"@fragment fn main() -> @location(0) vec4f { return vec4f(1.0); }",
	}, "\n")

	pp := NewPreProcessor(snippets)
	out, err := pp.Process(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := strings.Count(out, "struct CameraUniform"); n != 1 {
		t.Errorf("camera snippet included %d times", n)
	}
	for _, want := range []string{
		"@group(0) @binding(0) var<uniform> camera: CameraUniform;",
		"@group(0) @binding(1) var<storage, read> lights: array<Light>;",
		"@group(1) @binding(0) var albedo: texture_2d<f32>;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "@oxy:") {
		t.Errorf("annotations left in output:\n%s", out)
	}
	if pp.Aliases()["Albedo"] != "albedo" {
		t.Errorf("unexpected aliases %v", pp.Aliases())
	}
}

func TestPreProcessorErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown include", "//@oxy:include missing"},
		{"unknown annotation", "//@oxy:frobnicate x"},
		{"empty annotation", "//@oxy:"},
		{"bad group number", "//@oxy:group x 0 storage_uniform a f32"},
		{"bad address space", "//@oxy:group 0 0 private a f32"},
		{"short group", "//@oxy:group 0 0 storage_uniform a"},
		{"short param", "//@oxy:param Key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPreProcessor(nil).Process(tt.src); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestPreProcessorPassthrough(t *testing.T) {
	src := "// plain comment\nfn f() {}\n"
	out, err := NewPreProcessor(nil).Process(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != src {
		t.Errorf("source changed: %q", out)
	}
}
