// Command libsoroban builds the soroban pipeline as a C shared library for
// camera hosts:
//
//	go build -buildmode=c-shared -o libsoroban.so ./cmd/libsoroban
//
// soroban.h declares the structs; the exported functions are listed in the
// generated libsoroban.h. An instance may be used from one thread at a time
// for processing while another thread swaps its configuration.
package main

/*
#define SOROBAN_NO_PROTOTYPES
#include "soroban.h"
*/
import "C"

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/cgo"
	"strings"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/cvbackend"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/imaging"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/pipeline"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

type instance struct {
	p      *pipeline.Pipeline
	logger *slog.Logger
}

func newInstance() *instance {
	level := slog.LevelWarn
	switch strings.ToLower(os.Getenv("SOROBAN_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
		With("component", "libsoroban")

	var backend vision.Backend = imaging.NewBackend()
	if b, err := cvbackend.New(); err == nil {
		backend = b
	}
	logger.Debug("instance created", "backend", backend.Name())

	return &instance{
		p:      pipeline.New(pipeline.WithBackend(backend), pipeline.WithLogger(logger)),
		logger: logger,
	}
}

// lookup resolves a handle, returning nil for 0 or a handle that was never
// issued or already destroyed.
func lookup(h C.uintptr_t) (inst *instance) {
	if h == 0 {
		return nil
	}
	defer func() {
		if recover() != nil {
			inst = nil
		}
	}()
	inst, _ = cgo.Handle(h).Value().(*instance)
	return inst
}

// process runs one frame through the pipeline into out. out is zeroed first
// and the frame result is filled even when extraction fails.
func process(inst *instance, buf vision.PixelBuffer, out *C.SorobanExtractionResult) (code vision.ErrorCode) {
	*out = C.SorobanExtractionResult{}
	defer func() {
		if r := recover(); r != nil {
			inst.logger.Error("panic in soroban_process", "panic", fmt.Sprint(r))
			freeResult(out)
			code = vision.CodeProcessingError
		}
	}()

	res, err := inst.p.Process(buf)
	defer res.Release()

	code = fillResult(res, out)
	if code == vision.CodeNone && err != nil {
		code = vision.CodeOf(err)
	}
	return code
}

//export soroban_create
func soroban_create() C.uintptr_t {
	return C.uintptr_t(cgo.NewHandle(newInstance()))
}

//export soroban_destroy
func soroban_destroy(h C.uintptr_t) {
	inst := lookup(h)
	if inst == nil {
		return
	}
	if err := inst.p.Close(); err != nil {
		inst.logger.Warn("close failed", "error", err)
	}
	cgo.Handle(h).Delete()
}

//export soroban_process
func soroban_process(h C.uintptr_t, frame *C.SorobanFrame, result *C.SorobanExtractionResult) C.int32_t {
	if result == nil {
		return C.int32_t(vision.CodeInvalidInput)
	}
	inst := lookup(h)
	if inst == nil || frame == nil {
		*result = C.SorobanExtractionResult{}
		return C.int32_t(vision.CodeInvalidInput)
	}
	return C.int32_t(process(inst, cFrame{f: frame}, result))
}

//export soroban_free_result
func soroban_free_result(result *C.SorobanExtractionResult) {
	freeResult(result)
}

//export soroban_default_config
func soroban_default_config(cfg *C.SorobanPreprocessingConfig) {
	if cfg != nil {
		*cfg = cConfig(vision.DefaultPreprocessingConfig())
	}
}

//export soroban_default_detection_params
func soroban_default_detection_params(params *C.SorobanDetectionParams) {
	if params != nil {
		*params = cDetectionParams(vision.DefaultDetectionParams())
	}
}

//export soroban_set_config
func soroban_set_config(h C.uintptr_t, cfg *C.SorobanPreprocessingConfig) C.int32_t {
	inst := lookup(h)
	if inst == nil || cfg == nil {
		return C.int32_t(vision.CodeInvalidInput)
	}
	if err := inst.p.SetConfig(goConfig(cfg)); err != nil {
		inst.logger.Warn("rejected preprocessing config", "error", err)
		return C.int32_t(vision.CodeInvalidInput)
	}
	return C.int32_t(vision.CodeNone)
}

//export soroban_set_detection_params
func soroban_set_detection_params(h C.uintptr_t, params *C.SorobanDetectionParams) C.int32_t {
	inst := lookup(h)
	if inst == nil || params == nil {
		return C.int32_t(vision.CodeInvalidInput)
	}
	if err := inst.p.SetDetectionParams(goDetectionParams(params)); err != nil {
		inst.logger.Warn("rejected detection params", "error", err)
		return C.int32_t(vision.CodeInvalidInput)
	}
	return C.int32_t(vision.CodeNone)
}

func main() {}
