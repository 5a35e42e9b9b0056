package audio

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a speech output format as requested from the provider.
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatOpus Format = "opus"
	FormatAAC  Format = "aac"
	FormatFLAC Format = "flac"
	FormatWAV  Format = "wav"
	FormatPCM  Format = "pcm"
)

type formatInfo struct {
	ext         string
	contentType string
}

var formats = map[Format]formatInfo{
	FormatMP3:  {ext: ".mp3", contentType: "audio/mpeg"},
	FormatOpus: {ext: ".opus", contentType: "audio/ogg"},
	FormatAAC:  {ext: ".aac", contentType: "audio/aac"},
	FormatFLAC: {ext: ".flac", contentType: "audio/flac"},
	FormatWAV:  {ext: ".wav", contentType: "audio/wav"},
	// pcm is stored wrapped in WAV.
	FormatPCM: {ext: ".wav", contentType: "audio/wav"},
}

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := formats[f]; !ok {
		return "", fmt.Errorf("unsupported audio format %q", s)
	}
	return f, nil
}

// Ext is the file extension, with the leading dot, of stored audio.
func (f Format) Ext() string {
	if info, ok := formats[f]; ok {
		return info.ext
	}
	return ".bin"
}

// KnownExt reports whether ext (with leading dot) is the extension of a
// supported format.
func KnownExt(ext string) bool {
	for _, info := range formats {
		if info.ext == ext {
			return true
		}
	}
	return false
}

// ContentType is the MIME type of stored audio.
func (f Format) ContentType() string {
	if info, ok := formats[f]; ok {
		return info.contentType
	}
	return "application/octet-stream"
}

// ContentTypeForName maps a stored file name to its MIME type by extension.
func ContentTypeForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	for _, info := range formats {
		if info.ext == ext {
			return info.contentType
		}
	}
	return "application/octet-stream"
}
