// Package pipeline drives one camera frame through every stage:
// preprocessing, frame detection, rectification, lane counting, lane and
// cell extraction, tensor conversion and, for Recognize, classification and
// interpretation.
//
// A Pipeline owns one instance of each stage. Configuration can be swapped
// between frames with SetConfig, SetDetectionParams and SetTensorConfig;
// a frame in flight always sees one consistent configuration.
//
// Failures are reported as *vision.Error values. FrameNotDetected is the
// normal outcome for a frame without a soroban and is only logged at debug
// level. Panics raised inside any stage are recovered and reported as
// CodeProcessingError.
package pipeline
