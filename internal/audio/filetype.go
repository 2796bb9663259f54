package audio

import (
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// FileType selects the decoder for a piece of encoded audio
type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeWAV
	FileTypeOGG
	FileTypeMP3
	FileTypeFLAC
	FileTypeAIFF
)

var fileTypeNames = map[FileType]string{
	FileTypeUnknown: "unknown",
	FileTypeWAV:     "WAV",
	FileTypeOGG:     "OGG",
	FileTypeMP3:     "MP3",
	FileTypeFLAC:    "FLAC",
	FileTypeAIFF:    "AIFF",
}

var fileTypeTags = map[string]FileType{
	"wav":  FileTypeWAV,
	"wave": FileTypeWAV,
	"ogg":  FileTypeOGG,
	"oga":  FileTypeOGG,
	"mp3":  FileTypeMP3,
	"mpeg": FileTypeMP3,
	"flac": FileTypeFLAC,
	"aif":  FileTypeAIFF,
	"aiff": FileTypeAIFF,
}

func (t FileType) String() string {
	if name, ok := fileTypeNames[t]; ok {
		return name
	}
	return fileTypeNames[FileTypeUnknown]
}

// ParseFileType maps a type tag such as ".wav", "wav" or "WAV" to a FileType.
// Unrecognized tags map to FileTypeUnknown.
func ParseFileType(tag string) FileType {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.TrimPrefix(tag, ".")
	if t, ok := fileTypeTags[tag]; ok {
		return t
	}
	return FileTypeUnknown
}

// FileTypeFromPath derives the FileType from the extension after the last dot.
func FileTypeFromPath(path string) FileType {
	return ParseFileType(extensionOf(path))
}

// DetectFileType identifies a container from its leading bytes.
func DetectFileType(data []byte) FileType {
	if len(data) == 0 {
		return FileTypeUnknown
	}

	mtype := mimetype.Detect(data)
	mimeStr := strings.ToLower(mtype.String())

	var detected FileType
	switch {
	case strings.Contains(mimeStr, "wav") || mimeStr == "audio/vnd.wave":
		detected = FileTypeWAV
	case strings.Contains(mimeStr, "ogg"):
		detected = FileTypeOGG
	case strings.Contains(mimeStr, "mpeg") || strings.Contains(mimeStr, "mp3"):
		detected = FileTypeMP3
	case strings.Contains(mimeStr, "flac"):
		detected = FileTypeFLAC
	case strings.Contains(mimeStr, "aiff"):
		detected = FileTypeAIFF
	default:
		detected = FileTypeUnknown
	}

	slog.Debug("content signature detection result",
		"detected_mime", mtype.String(),
		"file_type", detected.String(),
		"bytes_analyzed", min(len(data), 3072))

	return detected
}
