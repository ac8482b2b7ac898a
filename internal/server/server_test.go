package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/audiolibrelab/audiocast/internal/audio"
	"github.com/audiolibrelab/audiocast/internal/config"
	"github.com/audiolibrelab/audiocast/internal/metrics"
	"github.com/audiolibrelab/audiocast/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeService implements service.Service with canned results.
type fakeService struct {
	devices     *service.DeviceList
	devicesErr  error
	selectErr   error
	selected    string
	systemAudio audio.Device
	systemErr   error
	encodingErr error
	lastArgs    string
	lastPreset  string
	allowCustom bool
	streamErr   error
	streamBody  string
	resetCalls  int
	logs        string
}

func (f *fakeService) ListDevices(ctx context.Context) (*service.DeviceList, error) {
	return f.devices, f.devicesErr
}

func (f *fakeService) SelectDevice(value string) (config.Configuration, error) {
	f.selected = value
	return config.Configuration{SelectedDevice: &value}, f.selectErr
}

func (f *fakeService) SelectSystemAudio(ctx context.Context) (audio.Device, error) {
	return f.systemAudio, f.systemErr
}

func (f *fakeService) SetEncodingArgs(raw string) (config.Configuration, error) {
	f.lastArgs = raw
	return config.Configuration{}, f.encodingErr
}

func (f *fakeService) SetEncodingPreset(name string) (config.Configuration, error) {
	f.lastPreset = name
	return config.Configuration{}, f.encodingErr
}

func (f *fakeService) EncodingArgs() (string, error) {
	return "-ac 2 -ar 44100 -c:a pcm_s16le -f wav", nil
}

func (f *fakeService) CustomArgsAllowed() bool { return f.allowCustom }

func (f *fakeService) GetConfiguration() (config.Configuration, error) {
	return config.Configuration{}, nil
}

func (f *fakeService) ResetConfiguration() (config.Configuration, error) {
	f.resetCalls++
	return config.Configuration{}, nil
}

func (f *fakeService) Stream(ctx context.Context, sink audio.ResponseSink) error {
	if f.streamErr != nil {
		return f.streamErr
	}
	sink.Header().Set("Content-Type", "audio/wav")
	sink.WriteHeader(http.StatusOK)
	sink.Flush()
	fmt.Fprint(sink, f.streamBody)
	return nil
}

func (f *fakeService) Logs() string         { return f.logs }
func (f *fakeService) GetLastError() string { return "" }

func newTestServer(svc service.Service, opts Options) http.Handler {
	return New(svc, opts).Handler()
}

func postForm(h http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected JSON error body, got %q: %v", rec.Body.String(), err)
	}
	if body.Success {
		t.Errorf("Expected success=false")
	}
	return body.Error
}

func TestStream_NoDeviceSelected(t *testing.T) {
	h := newTestServer(&fakeService{streamErr: audio.ErrNoDeviceSelected}, Options{})

	rec := get(h, "/stream")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); !strings.Contains(msg, "No capture device") {
		t.Errorf("Expected device error message, got %q", msg)
	}
}

func TestStream_Body(t *testing.T) {
	h := newTestServer(&fakeService{streamBody: "RIFF...."}, Options{})

	rec := get(h, "/stream")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "audio/wav" {
		t.Errorf("Expected audio/wav, got %s", rec.Header().Get("Content-Type"))
	}
	if rec.Body.String() != "RIFF...." {
		t.Errorf("Expected streamed body, got %q", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Errorf("Expected X-Request-ID header")
	}
}

func TestDevices(t *testing.T) {
	selected := "mic"
	svc := &fakeService{devices: &service.DeviceList{
		Devices:  []audio.Device{{Value: "mic", Label: "Microphone"}},
		Selected: &selected,
	}}
	h := newTestServer(svc, Options{})

	rec := get(h, "/devices")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body struct {
		Devices  []audio.Device `json:"devices"`
		Selected *string        `json:"selected"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(body.Devices) != 1 || body.Devices[0].Label != "Microphone" {
		t.Errorf("Unexpected devices: %+v", body.Devices)
	}
	if body.Selected == nil || *body.Selected != "mic" {
		t.Errorf("Expected selected mic, got %v", body.Selected)
	}
}

func TestDevices_SelectedNull(t *testing.T) {
	svc := &fakeService{devices: &service.DeviceList{Devices: []audio.Device{}}}
	h := newTestServer(svc, Options{})

	rec := get(h, "/devices")
	if !strings.Contains(rec.Body.String(), `"selected":null`) {
		t.Errorf("Expected null selection, got %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"devices":[]`) {
		t.Errorf("Expected empty device array, got %s", rec.Body.String())
	}
}

func TestDevices_ProbeFailure(t *testing.T) {
	h := newTestServer(&fakeService{devicesErr: audio.ErrDeviceListingFailed}, Options{})

	if rec := get(h, "/devices"); rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
}

func TestSetDevice(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(svc, Options{})

	rec := postForm(h, "/set-device", url.Values{"device": {"alsa_output.monitor"}})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Errorf("Expected 303 to /, got %d %s", rec.Code, rec.Header().Get("Location"))
	}
	if svc.selected != "alsa_output.monitor" {
		t.Errorf("Expected device to be selected, got %q", svc.selected)
	}

	if rec := postForm(h, "/set-device", url.Values{}); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing device, got %d", rec.Code)
	}
}

func TestSetDevice_PersistenceFailure(t *testing.T) {
	h := newTestServer(&fakeService{selectErr: config.ErrConfigPersistence}, Options{})

	rec := postForm(h, "/set-device", url.Values{"device": {"mic"}})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
}

func TestSetFFmpeg(t *testing.T) {
	svc := &fakeService{allowCustom: true}
	h := newTestServer(svc, Options{})

	rec := postForm(h, "/set-ffmpeg", url.Values{"preset": {"aac"}})
	if rec.Code != http.StatusSeeOther {
		t.Errorf("Expected 303, got %d", rec.Code)
	}
	if svc.lastPreset != "aac" {
		t.Errorf("Expected preset aac, got %q", svc.lastPreset)
	}

	rec = postForm(h, "/set-ffmpeg", url.Values{"args": {"-c:a flac -f flac"}})
	if rec.Code != http.StatusSeeOther {
		t.Errorf("Expected 303, got %d", rec.Code)
	}
	if svc.lastArgs != "-c:a flac -f flac" {
		t.Errorf("Expected raw args, got %q", svc.lastArgs)
	}
}

func TestSetFFmpeg_Disabled(t *testing.T) {
	h := newTestServer(&fakeService{allowCustom: false}, Options{})

	if rec := postForm(h, "/set-ffmpeg", url.Values{"args": {"-f wav"}}); rec.Code != http.StatusGone {
		t.Errorf("Expected 410, got %d", rec.Code)
	}
}

func TestSetFFmpeg_Invalid(t *testing.T) {
	h := newTestServer(&fakeService{allowCustom: true, encodingErr: config.ErrInvalidEncoding}, Options{})

	if rec := postForm(h, "/set-ffmpeg", url.Values{"args": {"-i evil"}}); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestSelectSystemAudio(t *testing.T) {
	svc := &fakeService{systemAudio: audio.Device{Value: "out.monitor", Label: "Monitor of Speakers"}}
	h := newTestServer(svc, Options{})

	rec := postForm(h, "/select-system-audio", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body SystemAudioResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body.Selected != "out.monitor" || body.Label != "Monitor of Speakers" {
		t.Errorf("Unexpected response: %+v", body)
	}
}

func TestSelectSystemAudio_NotFound(t *testing.T) {
	h := newTestServer(&fakeService{systemErr: service.ErrNoLoopbackDevice}, Options{})

	if rec := postForm(h, "/select-system-audio", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestLogsAndArgs(t *testing.T) {
	h := newTestServer(&fakeService{logs: "2024-01-01 10:00:00 INFO started\n"}, Options{})

	rec := get(h, "/logs")
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("Expected text/plain, got %s", rec.Header().Get("Content-Type"))
	}
	if rec.Body.String() != "2024-01-01 10:00:00 INFO started\n" {
		t.Errorf("Unexpected logs body %q", rec.Body.String())
	}

	rec = get(h, "/ffmpeg-args")
	if rec.Body.String() != "-ac 2 -ar 44100 -c:a pcm_s16le -f wav" {
		t.Errorf("Unexpected args body %q", rec.Body.String())
	}
}

func TestResetConfig(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(svc, Options{})

	rec := postForm(h, "/reset-config", nil)
	if rec.Code != http.StatusSeeOther {
		t.Errorf("Expected 303, got %d", rec.Code)
	}
	if svc.resetCalls != 1 {
		t.Errorf("Expected one reset, got %d", svc.resetCalls)
	}
}

func TestMetricsRoute(t *testing.T) {
	if rec := get(newTestServer(&fakeService{}, Options{}), "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without stats, got %d", rec.Code)
	}

	rec := get(newTestServer(&fakeService{}, Options{Stats: metrics.New()}), "/metrics")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with stats, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "audiocast_active_streams") {
		t.Errorf("Expected audiocast metrics in exposition")
	}
}

func TestStatic(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0644); err != nil {
		t.Fatal(err)
	}
	h := newTestServer(&fakeService{}, Options{StaticDir: dir})

	rec := get(h, "/app.js")
	if rec.Code != http.StatusOK || rec.Body.String() != "console.log(1)" {
		t.Errorf("Expected static file, got %d %q", rec.Code, rec.Body.String())
	}

	rec = get(h, "/")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<title>audiocast</title>") {
		t.Errorf("Expected fallback index, got %d", rec.Code)
	}

	if rec := get(h, "/../../etc/passwd"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 outside static dir, got %d", rec.Code)
	}
	if rec := get(h, "/missing.css"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing file, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	h := newTestServer(&fakeService{}, Options{CORSOrigins: []string{"http://player.local"}})

	req := httptest.NewRequest(http.MethodGet, "/ffmpeg-args", nil)
	req.Header.Set("Origin", "http://player.local")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "http://player.local" {
		t.Errorf("Expected CORS header, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{audio.ErrNoDeviceSelected, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", config.ErrInvalidEncoding), http.StatusBadRequest},
		{config.ErrInvalidDevice, http.StatusBadRequest},
		{service.ErrNoLoopbackDevice, http.StatusNotFound},
		{service.ErrCustomArgsDisabled, http.StatusGone},
		{audio.ErrDeviceListingFailed, http.StatusInternalServerError},
		{config.ErrConfigPersistence, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.code {
			t.Errorf("statusFor(%v): expected %d, got %d", tt.err, tt.code, got)
		}
	}
}
