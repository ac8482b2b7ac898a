package audio

import (
	"regexp"
	"strings"

	"github.com/audiolibrelab/audiocast/internal/config"
)

// Device is one capture source offered to the user. Value can be used as the
// -i argument as is.
type Device struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type lineKind int

const (
	lineIgnored lineKind = iota
	lineDevice
	lineSection
)

// parsedLine is the result of classifying a single line of probe output.
// A lineDevice result may carry only a value or only a label; the fold merges
// partial results until both are present.
type parsedLine struct {
	kind    lineKind
	section string
	device  Device
}

// classifier inspects one line given the current section.
type classifier func(line, section string) parsedLine

var classifiers = map[string]classifier{
	config.DriverDShow:        classifyDShow,
	config.DriverAVFoundation: classifyAVFoundation,
	config.DriverPulse:        classifyPulse,
	config.DriverALSA:         classifyALSA,
}

// ParseDevices extracts devices from the probe output of driver. Malformed
// lines are skipped; duplicates are returned once.
func ParseDevices(driver, text string) []Device {
	classify, ok := classifiers[driver]
	if !ok {
		return nil
	}
	return foldLines(text, classify)
}

func foldLines(text string, classify classifier) []Device {
	var (
		devices []Device
		pending Device
		section string
	)
	seen := make(map[string]bool)

	for _, line := range splitLines(text) {
		r := classify(line, section)
		switch r.kind {
		case lineSection:
			section = r.section
			pending = Device{}
		case lineDevice:
			if v := strings.TrimSpace(r.device.Value); v != "" {
				pending.Value = v
			}
			if l := strings.TrimSpace(r.device.Label); l != "" {
				pending.Label = l
			}
			if pending.Value == "" || pending.Label == "" {
				continue
			}
			if !seen[pending.Value] {
				seen[pending.Value] = true
				devices = append(devices, pending)
			}
			pending = Device{}
		}
	}
	return devices
}

// splitLines splits on \n and \r so progress-style output is handled too.
func splitLines(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })
}

// stripLogPrefix removes the "[dshow @ 0000020d]" style context prefix ffmpeg
// puts in front of device listing lines.
func stripLogPrefix(line string) string {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "[") {
		if end := strings.Index(trimmed, "]"); end > 0 && strings.Contains(trimmed[:end], "@") {
			return strings.TrimSpace(trimmed[end+1:])
		}
	}
	return trimmed
}

var dshowDevice = regexp.MustCompile(`^"([^"]+)"\s*(?:\((\w+)\))?\s*$`)

// classifyDShow understands both ffmpeg listing styles: the older one with
// "DirectShow audio devices" headers and the newer one that tags each name
// with "(audio)" or "(video)".
func classifyDShow(line, section string) parsedLine {
	rest := stripLogPrefix(line)
	switch {
	case strings.Contains(rest, "Alternative name"):
		return parsedLine{kind: lineIgnored}
	case strings.Contains(rest, "DirectShow audio devices"):
		return parsedLine{kind: lineSection, section: "audio"}
	case strings.Contains(rest, "DirectShow video devices"):
		return parsedLine{kind: lineSection, section: "video"}
	}

	m := dshowDevice.FindStringSubmatch(rest)
	if m == nil {
		return parsedLine{kind: lineIgnored}
	}
	name := strings.TrimSpace(m[1])
	kind := m[2]
	if kind != "audio" && !(kind == "" && section == "audio") {
		return parsedLine{kind: lineIgnored}
	}
	return parsedLine{kind: lineDevice, device: Device{Value: "audio=" + name, Label: name}}
}

var avfoundationDevice = regexp.MustCompile(`^\[(\d+)\]\s+(.+)$`)

func classifyAVFoundation(line, section string) parsedLine {
	rest := stripLogPrefix(line)
	switch {
	case strings.Contains(rest, "AVFoundation audio devices"):
		return parsedLine{kind: lineSection, section: "audio"}
	case strings.Contains(rest, "AVFoundation video devices"):
		return parsedLine{kind: lineSection, section: "video"}
	}
	if section != "audio" {
		return parsedLine{kind: lineIgnored}
	}

	m := avfoundationDevice.FindStringSubmatch(rest)
	if m == nil {
		return parsedLine{kind: lineIgnored}
	}
	return parsedLine{kind: lineDevice, device: Device{Value: ":" + m[1], Label: m[2]}}
}

var pulseHeader = regexp.MustCompile(`^(Source|Sink) #\d+$`)

// classifyPulse reads "pactl list sources" and "pactl list sinks" output.
// Sinks are offered through their monitor source.
func classifyPulse(line, section string) parsedLine {
	trimmed := strings.TrimSpace(line)
	if m := pulseHeader.FindStringSubmatch(trimmed); m != nil {
		return parsedLine{kind: lineSection, section: strings.ToLower(m[1])}
	}
	if section == "" {
		return parsedLine{kind: lineIgnored}
	}

	key, value, ok := strings.Cut(trimmed, ":")
	if !ok {
		return parsedLine{kind: lineIgnored}
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return parsedLine{kind: lineIgnored}
	}

	switch key {
	case "Name":
		if section == "sink" {
			value += ".monitor"
		}
		return parsedLine{kind: lineDevice, device: Device{Value: value}}
	case "Description":
		if section == "sink" {
			value = "Monitor of " + value
		}
		return parsedLine{kind: lineDevice, device: Device{Label: value}}
	}
	return parsedLine{kind: lineIgnored}
}

var alsaDevice = regexp.MustCompile(`^card (\d+): (\S+) \[([^\]]*)\], device (\d+): ([^\[]*?)\s*(?:\[([^\]]*)\])?$`)

// classifyALSA reads "arecord -l" output.
func classifyALSA(line, section string) parsedLine {
	m := alsaDevice.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return parsedLine{kind: lineIgnored}
	}

	cardID, cardName, dev := m[2], strings.TrimSpace(m[3]), m[4]
	devName := strings.TrimSpace(m[6])
	if devName == "" {
		devName = strings.TrimSpace(m[5])
	}

	label := cardName
	if devName != "" {
		label = cardName + ": " + devName
	}
	return parsedLine{kind: lineDevice, device: Device{
		Value: "hw:CARD=" + cardID + ",DEV=" + dev,
		Label: label,
	}}
}
