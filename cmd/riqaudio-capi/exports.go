package main

/*
#include <stdbool.h>
#include <stdint.h>
#include <stdlib.h>

typedef struct riqAudioBuffer riqAudioBuffer;
typedef struct riqAudioProcessor riqAudioProcessor;

typedef struct AudioStream
{
	riqAudioBuffer* buffer;
	riqAudioProcessor* processor;

	unsigned int sampleRate;
	unsigned int sampleSize;
	unsigned int channels;
} AudioStream;

typedef struct Wave
{
	unsigned int frameCount;
	unsigned int sampleRate;
	unsigned int sampleSize;
	unsigned int channels;
	void* data;
} Wave;

typedef struct Sound
{
	AudioStream stream;
	unsigned int frameCount;
} Sound;

// Registry tokens travel through the pointer fields; C code never
// dereferences them.
static inline riqAudioBuffer* riq_buffer_token(uintptr_t id) { return (riqAudioBuffer*)id; }
static inline riqAudioProcessor* riq_processor_token(uintptr_t id) { return (riqAudioProcessor*)id; }
static inline uintptr_t riq_token_value(void* p) { return (uintptr_t)p; }
*/
import "C"

import (
	"log/slog"
	"unsafe"

	"riqaudio.click/internal/audio"
	"riqaudio.click/internal/device"
	"riqaudio.click/internal/engine"
)

func toCSound(s engine.Sound) C.Sound {
	return C.Sound{
		stream: C.AudioStream{
			buffer:     C.riq_buffer_token(C.uintptr_t(s.Stream.Buffer)),
			processor:  C.riq_processor_token(C.uintptr_t(s.Stream.Processor)),
			sampleRate: C.uint(s.Stream.SampleRate),
			sampleSize: C.uint(s.Stream.SampleSize),
			channels:   C.uint(s.Stream.Channels),
		},
		frameCount: C.uint(s.FrameCount),
	}
}

func fromCSound(s C.Sound) engine.Sound {
	return engine.Sound{
		Stream: device.Stream{
			Buffer:     device.BufferID(C.riq_token_value(unsafe.Pointer(s.stream.buffer))),
			Processor:  device.ProcessorID(C.riq_token_value(unsafe.Pointer(s.stream.processor))),
			SampleRate: uint32(s.stream.sampleRate),
			SampleSize: uint32(s.stream.sampleSize),
			Channels:   uint32(s.stream.channels),
		},
		FrameCount: uint32(s.frameCount),
	}
}

// toCWave copies the samples into C memory; RiqUnloadWave frees them
func toCWave(w *audio.Wave) C.Wave {
	cw := C.Wave{
		frameCount: C.uint(w.FrameCount),
		sampleRate: C.uint(w.SampleRate),
		sampleSize: C.uint(w.SampleSize),
		channels:   C.uint(w.Channels),
	}
	if len(w.Data) > 0 {
		cw.data = C.CBytes(w.Data)
	}
	return cw
}

// fromCWave copies the C samples into Go memory. Headers whose size cannot be
// copied are rejected before the C memory is touched.
func fromCWave(cw C.Wave) (*audio.Wave, error) {
	size, err := waveDataSize(uint32(cw.frameCount), uint32(cw.sampleSize), uint32(cw.channels))
	if err != nil {
		return nil, err
	}
	w := &audio.Wave{
		FrameCount: uint32(cw.frameCount),
		SampleRate: uint32(cw.sampleRate),
		SampleSize: uint32(cw.sampleSize),
		Channels:   int32(cw.channels),
	}
	if cw.data != nil && size > 0 {
		w.Data = C.GoBytes(cw.data, C.int(size))
	}
	return w, nil
}

//export RiqInitAudioDevice
func RiqInitAudioDevice() {
	if err := lib.initDevice(); err != nil {
		slog.Error("RiqInitAudioDevice failed", "error", err)
	}
}

//export RiqCloseAudioDevice
func RiqCloseAudioDevice() {
	if err := lib.closeDevice(); err != nil {
		slog.Error("RiqCloseAudioDevice failed", "error", err)
	}
}

//export IsRiqReady
func IsRiqReady() C.bool {
	return C.bool(lib.ready())
}

//export RiqLoadSound
func RiqLoadSound(filePath *C.char) C.Sound {
	sound, err := lib.loadSound(C.GoString(filePath))
	if err != nil {
		slog.Error("RiqLoadSound failed", "error", err)
		return C.Sound{}
	}
	return toCSound(sound)
}

//export RiqLoadSoundFromWave
func RiqLoadSoundFromWave(wave C.Wave) C.Sound {
	w, err := fromCWave(wave)
	if err != nil {
		slog.Error("RiqLoadSoundFromWave rejected wave header", "error", err)
		return C.Sound{}
	}
	sound, err := lib.loadSoundFromWave(w)
	if err != nil {
		slog.Error("RiqLoadSoundFromWave failed", "error", err)
		return C.Sound{}
	}
	return toCSound(sound)
}

//export RiqUnloadSound
func RiqUnloadSound(sound C.Sound) {
	if err := lib.unloadSound(fromCSound(sound)); err != nil {
		slog.Error("RiqUnloadSound failed", "error", err)
	}
}

//export RiqPlaySound
func RiqPlaySound(sound C.Sound) {
	if err := lib.playSound(fromCSound(sound)); err != nil {
		slog.Error("RiqPlaySound failed", "error", err)
	}
}

//export RiqLoadWave
func RiqLoadWave(filePath *C.char) C.Wave {
	wave, err := lib.loadWave(C.GoString(filePath))
	if err != nil {
		slog.Error("RiqLoadWave failed", "error", err)
		return C.Wave{}
	}
	defer wave.Release()
	return toCWave(wave)
}

//export RiqLoadWaveFromMemory
func RiqLoadWaveFromMemory(fileType *C.char, fileData *C.uchar, dataSize C.int) C.Wave {
	if fileData == nil || dataSize <= 0 {
		slog.Error("RiqLoadWaveFromMemory called without data", "size", int(dataSize))
		return C.Wave{}
	}

	data := C.GoBytes(unsafe.Pointer(fileData), dataSize)
	wave, err := lib.loadWaveFromMemory(C.GoString(fileType), data)
	if err != nil {
		slog.Error("RiqLoadWaveFromMemory failed", "error", err)
		return C.Wave{}
	}
	defer wave.Release()
	return toCWave(wave)
}

//export RiqUnloadWave
func RiqUnloadWave(wave C.Wave) {
	if wave.data != nil {
		C.free(wave.data)
	}
}
