package audio

import (
	"strings"

	"github.com/audiolibrelab/audiocast/internal/config"
)

// DefaultContentType is served for output formats missing from contentTypes.
const DefaultContentType = "application/octet-stream"

var contentTypes = map[string]string{
	"wav":   "audio/wav",
	"adts":  "audio/aac",
	"flac":  "audio/flac",
	"mp3":   "audio/mpeg",
	"ogg":   "audio/ogg",
	"opus":  "audio/ogg",
	"webm":  "audio/webm",
	"s16le": "audio/L16",
}

// ContentType resolves the MIME type from the last "-f <format>" pair in args.
func ContentType(args []string) string {
	format := strings.ToLower(config.OutputFormat(args))
	if ct, ok := contentTypes[format]; ok {
		return ct
	}
	return DefaultContentType
}
