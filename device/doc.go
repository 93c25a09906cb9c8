// Package device defines the native-API capability surface the texture
// engine is built against: texture and render-target resources, pixel
// formats, sampler parameters, and the Device interface with one
// implementation per graphics backend.
//
// The package contains no GPU code itself. Backends live under
// backend/ (see backend/wgpu for the WebGPU implementation) and the
// engine in the texcache root package consumes only these interfaces.
package device
