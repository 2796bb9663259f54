package audio

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

// stubDecoder records what it was asked to decode
type stubDecoder struct {
	fileType FileType
	calls    int
	wave     *Wave
	err      error
}

func (d *stubDecoder) Decode(reader io.Reader) (*Wave, error) {
	d.calls++
	if _, err := io.ReadAll(reader); err != nil {
		return nil, err
	}
	return d.wave, d.err
}

func (d *stubDecoder) CanDecode(filename string) bool {
	return FileTypeFromPath(filename) == d.fileType
}

func (d *stubDecoder) FormatName() string { return "STUB-" + d.fileType.String() }

func (d *stubDecoder) FileType() FileType { return d.fileType }

func TestDecoderRegistry(t *testing.T) {
	registry := NewDecoderRegistry()

	if registry == nil {
		t.Fatal("NewDecoderRegistry returned nil")
	}
	if decoders := registry.GetDecoders(); len(decoders) != 0 {
		t.Errorf("expected empty registry, got %d decoders", len(decoders))
	}
}

func TestDecoderRegistryRegisterReplacesSameType(t *testing.T) {
	registry := NewDecoderRegistry()

	first := &stubDecoder{fileType: FileTypeOGG}
	second := &stubDecoder{fileType: FileTypeOGG}
	registry.Register(first)
	registry.Register(second)
	registry.Register(nil)

	decoders := registry.GetDecoders()
	if len(decoders) != 1 {
		t.Fatalf("expected 1 decoder, got %d", len(decoders))
	}
	if registry.DecoderFor(FileTypeOGG) != second {
		t.Error("expected the later decoder to win")
	}
}

func TestNewDefaultRegistry(t *testing.T) {
	registry := NewDefaultRegistry()

	formats := strings.Join(registry.GetSupportedFormats(), ",")
	if formats != "WAV,OGG,MP3,FLAC,AIFF" {
		t.Errorf("unexpected supported formats %q", formats)
	}

	for _, ft := range []FileType{FileTypeWAV, FileTypeOGG, FileTypeMP3, FileTypeFLAC, FileTypeAIFF} {
		if registry.DecoderFor(ft) == nil {
			t.Errorf("no decoder for %s", ft)
		}
	}
}

func TestDecoderRegistryDetectFormat(t *testing.T) {
	registry := NewDefaultRegistry()

	testCases := []struct {
		filename string
		expected string
	}{
		{"sound.wav", "WAV"},
		{"path/to/music.OGG", "OGG"},
		{"track.mp3", "MP3"},
		{"lossless.flac", "FLAC"},
		{"old.aif", "AIFF"},
		{"notes.txt", ""},
		{"", ""},
	}

	for _, tc := range testCases {
		decoder := registry.DetectFormat(tc.filename)
		got := ""
		if decoder != nil {
			got = decoder.FormatName()
		}
		if got != tc.expected {
			t.Errorf("DetectFormat(%q) = %q, expected %q", tc.filename, got, tc.expected)
		}
	}
}

func TestLoadWaveFromMemoryTypeTags(t *testing.T) {
	registry := NewDefaultRegistry()
	wavData := buildTestWAV(wavFormatPCM, 1, 22050, 16, patternPCM(200))

	for _, tag := range []string{".wav", "wav", "WAV", ".WAVE", ".wav\x00ignored"} {
		t.Run(tag, func(t *testing.T) {
			wave, err := registry.LoadWaveFromMemory(tag, wavData)
			if err != nil {
				t.Fatalf("LoadWaveFromMemory(%q) failed: %v", tag, err)
			}
			if wave.FrameCount != 100 {
				t.Errorf("expected 100 frames, got %d", wave.FrameCount)
			}
		})
	}
}

func TestLoadWaveFromMemoryDispatch(t *testing.T) {
	ogg := &stubDecoder{fileType: FileTypeOGG, wave: &Wave{FrameCount: 1, SampleRate: 8000, SampleSize: 8, Channels: 1, Data: []byte{128}}}
	registry := NewDecoderRegistry()
	registry.Register(NewWavDecoder())
	registry.Register(ogg)

	if _, err := registry.LoadWaveFromMemory(".ogg", []byte("OggS-ish")); err != nil {
		t.Fatalf("expected stub decode to succeed, got %v", err)
	}
	if ogg.calls != 1 {
		t.Errorf("expected the OGG decoder to be called once, got %d", ogg.calls)
	}

	// Extension-less data falls back to the content signature
	wavData := buildTestWAV(wavFormatPCM, 2, 44100, 16, patternPCM(16))
	wave, err := registry.LoadWaveFromMemory("", wavData)
	if err != nil {
		t.Fatalf("expected content sniffing to find WAV, got %v", err)
	}
	if wave.Channels != 2 {
		t.Errorf("expected 2 channels, got %d", wave.Channels)
	}
}

func TestLoadWaveFromMemoryErrors(t *testing.T) {
	registry := NewDefaultRegistry()

	testCases := []struct {
		name    string
		tag     string
		data    []byte
		wantErr error
	}{
		{"empty data", ".wav", nil, ErrCorruptData},
		{"unknown tag and content", ".xyz", []byte("plain text, not audio"), ErrUnsupportedFormat},
		{"known tag with garbage", ".wav", []byte("garbage garbage garbage"), ErrCorruptData},
		{"ogg tag with garbage", ".ogg", []byte("garbage garbage garbage"), ErrCorruptData},
		{"flac tag with garbage", ".flac", []byte("garbage garbage garbage"), ErrCorruptData},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wave, err := registry.LoadWaveFromMemory(tc.tag, tc.data)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if wave != nil {
				t.Error("expected nil wave on error")
			}
		})
	}
}

func TestLoadWaveMissingDecoderForKnownType(t *testing.T) {
	registry := NewDecoderRegistry()
	registry.Register(NewWavDecoder())

	_, err := registry.LoadWaveFromMemory(".mp3", []byte{0xFF, 0xFB, 0x90, 0x00})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestLoadWaveFromFilesystem(t *testing.T) {
	fs := afero.NewMemMapFs()
	registry := NewDefaultRegistryWithFilesystem(fs)

	if err := afero.WriteFile(fs, "/sounds/click.wav", buildTestWAV(wavFormatPCM, 2, 44100, 16, patternPCM(400)), 0644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/sounds/empty.wav", nil, 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("existing file", func(t *testing.T) {
		wave, err := registry.LoadWave("/sounds/click.wav")
		if err != nil {
			t.Fatalf("LoadWave failed: %v", err)
		}
		if wave.FrameCount != 100 {
			t.Errorf("expected 100 frames, got %d", wave.FrameCount)
		}
	})

	t.Run("path truncated at NUL", func(t *testing.T) {
		if _, err := registry.LoadWave("/sounds/click.wav\x00.ogg"); err != nil {
			t.Fatalf("expected the path before the NUL to load, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := registry.LoadWave("/sounds/missing.ogg")
		if !errors.Is(err, ErrIO) {
			t.Fatalf("expected ErrIO, got %v", err)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := registry.LoadWave("/sounds/empty.wav")
		if !errors.Is(err, ErrCorruptData) {
			t.Fatalf("expected ErrCorruptData, got %v", err)
		}
		if errors.Is(err, ErrIO) {
			t.Errorf("a readable empty file is not an IO failure: %v", err)
		}

		_, memErr := registry.LoadWaveFromMemory(".wav", nil)
		if !errors.Is(memErr, ErrCorruptData) {
			t.Fatalf("expected ErrCorruptData from memory, got %v", memErr)
		}
	})
}
