package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

// handleStatic serves the web UI from the static directory. The index falls
// back to a built-in page when the directory has none.
func (s *Server) handleStatic(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		s.sendErrorResponse(c, http.StatusNotFound, "Not found", "path", c.Request.URL.Path)
		return
	}

	urlPath := path.Clean("/" + c.Request.URL.Path)
	if urlPath == "/" {
		urlPath = "/index.html"
	}

	if s.opts.StaticDir != "" {
		file := filepath.Join(s.opts.StaticDir, filepath.FromSlash(urlPath))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			c.Header("Cache-Control", "no-cache")
			c.File(file)
			return
		}
	}

	if urlPath == "/index.html" {
		c.Header("Cache-Control", "no-cache")
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(getDefaultHTML()))
		return
	}

	s.sendErrorResponse(c, http.StatusNotFound, "Not found", "path", c.Request.URL.Path)
}

// getDefaultHTML provides a fallback HTML interface
func getDefaultHTML() string {
	return `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>audiocast</title>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/@picocss/pico@2/css/pico.min.css">
</head>
<body>
    <main class="container">
        <h1>audiocast</h1>

        <audio id="player" controls preload="none" src="/stream"></audio>

        <h2>Device</h2>
        <form method="post" action="/set-device">
            <select name="device" id="devices"><option value="">Loading devices...</option></select>
            <button type="submit">Use device</button>
        </form>
        <button id="system-audio" class="secondary">Detect system audio</button>

        <h2>Encoding</h2>
        <p>Current: <code id="args"></code></p>
        <form method="post" action="/set-ffmpeg">
            <select name="preset">
                <option value="wav">WAV (PCM)</option>
                <option value="aac">AAC (ADTS)</option>
                <option value="flac">FLAC</option>
                <option value="mp3">MP3</option>
                <option value="opus">Opus (Ogg)</option>
            </select>
            <button type="submit">Use preset</button>
        </form>

        <form method="post" action="/reset-config">
            <button type="submit" class="contrast">Reset configuration</button>
        </form>

        <h2>Logs</h2>
        <pre id="logs"></pre>
    </main>
    <script>
        async function loadDevices() {
            const select = document.getElementById('devices');
            try {
                const res = await fetch('/devices');
                const data = await res.json();
                select.innerHTML = '';
                for (const d of data.devices || []) {
                    const opt = document.createElement('option');
                    opt.value = d.value;
                    opt.textContent = d.label;
                    opt.selected = d.value === data.selected;
                    select.appendChild(opt);
                }
            } catch (e) {
                select.innerHTML = '<option value="">Device listing failed</option>';
            }
        }
        async function loadText(url, id) {
            const res = await fetch(url);
            document.getElementById(id).textContent = await res.text();
        }
        document.getElementById('system-audio').addEventListener('click', async () => {
            const res = await fetch('/select-system-audio', { method: 'POST' });
            const data = await res.json();
            alert(res.ok ? 'Selected ' + data.label : data.error);
            loadDevices();
        });
        loadDevices();
        loadText('/ffmpeg-args', 'args');
        loadText('/logs', 'logs');
        setInterval(() => loadText('/logs', 'logs'), 5000);
    </script>
</body>
</html>`
}
