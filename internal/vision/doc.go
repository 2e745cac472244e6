// Package vision holds the shared vocabulary of the soroban reading pipeline.
//
// Every stage (preprocess, detection, tensor, interpret) and every host
// surface (MCP server, C ABI) speaks in the types defined here: geometry
// values, per-frame detection results, bead-cell predictions, the error
// taxonomy and the configuration structs.
//
// # Coordinate System
//
// All coordinates are image pixels with the origin at the top-left corner,
// X increasing rightward and Y increasing downward. Rect values carry
// floating point fields because frame corners come out of perspective math.
//
// # Lifecycle
//
// Results are created fresh per processed frame and are never mutated after
// construction. Configuration structs are plain values: the pipeline owner
// replaces them wholesale between frames and no stage keeps a pointer into
// a caller's copy.
//
// # Backends
//
// Image operations are reached through the Backend interface. Two
// implementations exist: a pure-Go one (package imaging) and an OpenCV one
// (package cvbackend). The pipeline picks one at construction time, so both
// paths stay testable without rebuilding.
package vision
