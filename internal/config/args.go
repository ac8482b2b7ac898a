package config

import (
	"fmt"
	"sort"
	"strings"
)

// OutputTerminator directs the capture tool's output to its standard output.
const OutputTerminator = "-"

// DefaultEncoding is used when no encoding has been chosen: 16-bit stereo PCM
// in a WAV container.
var DefaultEncoding = []string{"-ac", "2", "-ar", "44100", "-c:a", "pcm_s16le", "-f", "wav"}

// Presets are the named encodings accepted by SetEncodingPreset.
var Presets = map[string][]string{
	"wav":  DefaultEncoding,
	"aac":  {"-ac", "2", "-ar", "44100", "-c:a", "aac", "-b:a", "192k", "-f", "adts"},
	"flac": {"-ac", "2", "-ar", "44100", "-c:a", "flac", "-f", "flac"},
	"mp3":  {"-ac", "2", "-ar", "44100", "-c:a", "libmp3lame", "-b:a", "192k", "-f", "mp3"},
	"opus": {"-ac", "2", "-ar", "48000", "-c:a", "libopus", "-b:a", "128k", "-f", "ogg"},
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildArgs assembles "-f <driver> -i <source> <encoding...> -".
func BuildArgs(driver, source string, encoding []string) []string {
	args := make([]string, 0, len(encoding)+5)
	args = append(args, "-f", driver, "-i", source)
	args = append(args, encoding...)
	return append(args, OutputTerminator)
}

// inputIndex returns the position of the first "-i" that has a value.
func inputIndex(args []string) int {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-i" {
			return i
		}
	}
	return -1
}

// InputSource returns the value of the first -i token.
func InputSource(args []string) (string, bool) {
	i := inputIndex(args)
	if i < 0 {
		return "", false
	}
	return args[i+1], true
}

// EncodingTokens returns the tokens between the input source and the output
// terminator. ok is false when args has no input source.
func EncodingTokens(args []string) (tokens []string, ok bool) {
	i := inputIndex(args)
	if i < 0 {
		return nil, false
	}
	rest := args[i+2:]
	if n := len(rest); n > 0 && isTerminator(rest[n-1]) {
		rest = rest[:n-1]
	}
	return append([]string(nil), rest...), true
}

// OutputFormat returns the value of the last "-f" token, which names the
// container written to standard output. The driver selector is also a -f
// token, so a missing output format yields the driver name.
func OutputFormat(args []string) string {
	for i := len(args) - 2; i >= 0; i-- {
		if args[i] == "-f" {
			return args[i+1]
		}
	}
	return ""
}

// ParseEncoding splits a whitespace separated token string.
func ParseEncoding(s string) []string {
	return strings.Fields(s)
}

// NormalizeEncoding validates caller supplied encoding tokens and strips a
// trailing output terminator.
func NormalizeEncoding(tokens []string) ([]string, error) {
	if n := len(tokens); n > 0 && isTerminator(tokens[n-1]) {
		tokens = tokens[:n-1]
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: no encoding tokens", ErrInvalidEncoding)
	}
	for _, tok := range tokens {
		if tok == "-i" {
			return nil, fmt.Errorf("%w: encoding must not select an input", ErrInvalidEncoding)
		}
		if strings.TrimSpace(tok) == "" {
			return nil, fmt.Errorf("%w: blank token", ErrInvalidEncoding)
		}
	}
	return append([]string(nil), tokens...), nil
}

func isTerminator(tok string) bool {
	return tok == OutputTerminator || strings.HasPrefix(tok, "pipe:")
}
