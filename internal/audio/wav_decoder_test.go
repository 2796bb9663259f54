package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestWavDecoderInterface(t *testing.T) {
	decoder := NewWavDecoder()

	var _ Decoder = decoder

	if decoder.FormatName() != "WAV" {
		t.Errorf("expected format name 'WAV', got '%s'", decoder.FormatName())
	}
	if decoder.FileType() != FileTypeWAV {
		t.Errorf("expected FileTypeWAV, got %v", decoder.FileType())
	}
}

func TestWavDecoderCanDecode(t *testing.T) {
	decoder := NewWavDecoder()

	testCases := []struct {
		filename string
		expected bool
	}{
		{"audio.wav", true},
		{"sound.WAV", true},
		{"music.wave", true},
		{"test.WAVE", true},
		{"audio.mp3", false},
		{"sound.flac", false},
		{"", false},
		{"wav", false},
		{"audio.wav.backup", false},
	}

	for _, tc := range testCases {
		result := decoder.CanDecode(tc.filename)
		if result != tc.expected {
			t.Errorf("CanDecode('%s') = %v, expected %v", tc.filename, result, tc.expected)
		}
	}
}

func TestWavDecoderDecodeInvalidData(t *testing.T) {
	decoder := NewWavDecoder()

	t.Run("empty data", func(t *testing.T) {
		data, err := decoder.Decode(bytes.NewReader([]byte{}))

		if !errors.Is(err, ErrCorruptData) {
			t.Fatalf("expected ErrCorruptData for empty data, got %v", err)
		}
		if data != nil {
			t.Error("expected nil wave on error")
		}
	})

	t.Run("invalid WAV header", func(t *testing.T) {
		data, err := decoder.Decode(bytes.NewReader([]byte("not a wav file")))

		if !errors.Is(err, ErrCorruptData) {
			t.Fatalf("expected ErrCorruptData for invalid WAV data, got %v", err)
		}
		if data != nil {
			t.Error("expected nil wave on error")
		}
	})

	t.Run("24-bit samples", func(t *testing.T) {
		wavData := buildTestWAV(wavFormatPCM, 2, 44100, 24, make([]byte, 2*3*10))
		_, err := decoder.Decode(bytes.NewReader(wavData))

		if !errors.Is(err, ErrInvalidWaveFormat) {
			t.Fatalf("expected ErrInvalidWaveFormat for 24-bit WAV, got %v", err)
		}
	})

	t.Run("compressed codec", func(t *testing.T) {
		// 0x0011 is IMA ADPCM
		wavData := buildTestWAV(0x0011, 1, 22050, 16, make([]byte, 64))
		_, err := decoder.Decode(bytes.NewReader(wavData))

		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("expected ErrUnsupportedFormat for ADPCM WAV, got %v", err)
		}
	})
}

// buildTestWAV assembles a canonical 44-byte-header RIFF/WAVE file
func buildTestWAV(audioFormat uint16, channels, sampleRate, bits int, data []byte) []byte {
	blockAlign := channels * bits / 8
	header := make([]byte, 44)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(data)))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], audioFormat)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bits))

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(data)))

	return append(header, data...)
}

// patternPCM returns n bytes of a deterministic non-silent pattern
func patternPCM(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}
	return data
}

func TestWavDecoderDecodeValidData(t *testing.T) {
	decoder := NewWavDecoder()

	sampleData := []byte{0x00, 0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0x04}
	wave, err := decoder.Decode(bytes.NewReader(buildTestWAV(wavFormatPCM, 2, 44100, 16, sampleData)))
	if err != nil {
		t.Fatalf("expected no error for valid WAV, got %v", err)
	}

	if wave.Channels != 2 {
		t.Errorf("expected 2 channels, got %d", wave.Channels)
	}
	if wave.SampleRate != 44100 {
		t.Errorf("expected sample rate 44100, got %d", wave.SampleRate)
	}
	if wave.SampleSize != 16 {
		t.Errorf("expected 16-bit samples, got %d", wave.SampleSize)
	}
	if wave.FrameCount != 2 {
		t.Errorf("expected 2 frames, got %d", wave.FrameCount)
	}
	if !bytes.Equal(wave.Data, sampleData) {
		t.Errorf("expected sample bytes %v, got %v", sampleData, wave.Data)
	}
}

// Decoded data length must equal frameCount·channels·bytesPerSample for every
// supported depth and channel count.
func TestWavDecoderRoundTripLengths(t *testing.T) {
	decoder := NewWavDecoder()

	for _, bits := range []int{8, 16, 32} {
		for _, channels := range []int{1, 2, 3, 6} {
			t.Run(fmt.Sprintf("%d-bit/%dch", bits, channels), func(t *testing.T) {
				const frames = 100
				pcm := patternPCM(frames * channels * bits / 8)

				format := uint16(wavFormatPCM)
				if bits == 32 {
					format = wavFormatIEEEFloat
				}

				wave, err := decoder.Decode(bytes.NewReader(buildTestWAV(format, channels, 48000, bits, pcm)))
				if err != nil {
					t.Fatalf("decode failed: %v", err)
				}

				if wave.FrameCount != frames {
					t.Errorf("expected %d frames, got %d", frames, wave.FrameCount)
				}
				if int(wave.Channels) != channels {
					t.Errorf("expected %d channels, got %d", channels, wave.Channels)
				}
				if len(wave.Data) != frames*channels*bits/8 {
					t.Errorf("expected %d bytes, got %d", frames*channels*bits/8, len(wave.Data))
				}
				if err := wave.Validate(); err != nil {
					t.Errorf("decoded wave does not validate: %v", err)
				}
				if !bytes.Equal(wave.Data, pcm) {
					t.Error("decoded samples differ from the source data")
				}
			})
		}
	}
}

func TestWavDecoderInt32ConvertedToFloat(t *testing.T) {
	decoder := NewWavDecoder()

	half, full := int32(1<<30), int32(math.MinInt32)
	pcm := make([]byte, 8)
	binary.LittleEndian.PutUint32(pcm[0:], uint32(half)) // 0.5
	binary.LittleEndian.PutUint32(pcm[4:], uint32(full)) // -1.0

	wave, err := decoder.Decode(bytes.NewReader(buildTestWAV(wavFormatPCM, 1, 44100, 32, pcm)))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if wave.SampleSize != 32 || len(wave.Data) != 8 {
		t.Fatalf("expected two 32-bit samples, got size %d and %d bytes", wave.SampleSize, len(wave.Data))
	}

	first := math.Float32frombits(binary.LittleEndian.Uint32(wave.Data[0:]))
	second := math.Float32frombits(binary.LittleEndian.Uint32(wave.Data[4:]))
	if first != 0.5 {
		t.Errorf("expected 0.5, got %f", first)
	}
	if second != -1.0 {
		t.Errorf("expected -1.0, got %f", second)
	}
}

func TestWavDecoderDropsPartialFrame(t *testing.T) {
	decoder := NewWavDecoder()

	// 3 whole stereo 16-bit frames plus 2 stray bytes
	pcm := patternPCM(3*4 + 2)
	wave, err := decoder.Decode(bytes.NewReader(buildTestWAV(wavFormatPCM, 2, 44100, 16, pcm)))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if wave.FrameCount != 3 {
		t.Errorf("expected 3 frames, got %d", wave.FrameCount)
	}
	if len(wave.Data) != 12 {
		t.Errorf("expected 12 bytes, got %d", len(wave.Data))
	}
}
