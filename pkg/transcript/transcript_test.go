package transcript

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
	"worker-evaluation/config"
	"worker-evaluation/constant"
	"worker-evaluation/pkg/provider"
)

func writeFile(t *testing.T, dir, name, body string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), mode))
	return path
}

func TestNewSelectsBackend(t *testing.T) {
	p, err := New(config.Transcript{Backend: constant.TranscriptBackendOpenAI, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &Whisper{}, p)

	p, err = New(config.Transcript{Backend: constant.TranscriptBackendScript, ScriptPath: "whisperx.py"})
	require.NoError(t, err)
	assert.IsType(t, &Script{}, p)

	_, err = New(config.Transcript{Backend: constant.TranscriptBackendOpenAI})
	assert.Equal(t, provider.CodeNotConfigured, provider.CodeOf(err))

	_, err = New(config.Transcript{Backend: "vosk"})
	assert.Error(t, err)
}

func TestScriptTranscribe(t *testing.T) {
	dir := t.TempDir()
	media := writeFile(t, dir, "answer.wav", "RIFF", 0o644)

	tests := []struct {
		name   string
		script string
		text   string
		code   provider.ErrorCode
	}{
		{name: "text key", script: `echo '{"text": "I led a team of five"}'`, text: "I led a team of five"},
		{name: "transcript key", script: `echo '{"transcript": "hello"}'`, text: "hello"},
		{name: "empty object", script: `echo '{}'`, text: ""},
		{name: "invalid json", script: `echo 'not json'`, code: provider.CodeInvalidOutput},
		{name: "non zero exit", script: "echo 'model missing' >&2\nexit 1", code: provider.CodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := writeFile(t, dir, "whisperx.sh", tt.script+"\n", 0o755)
			s := NewScript(config.Transcript{Python: "sh", ScriptPath: script, Timeout: 5 * time.Second})

			res, err := s.Transcribe(context.Background(), media)
			if tt.code != "" {
				require.Error(t, err)
				assert.Equal(t, tt.code, provider.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.text, res.Text)
		})
	}
}

func TestScriptConvertsNonWavInput(t *testing.T) {
	dir := t.TempDir()
	media := writeFile(t, dir, "answer.webm", "webm", 0o644)
	wav := writeFile(t, dir, "converted.wav", "RIFF", 0o644)
	script := writeFile(t, dir, "whisperx.sh", "echo \"{\\\"text\\\": \\\"$1\\\"}\"\n", 0o755)

	s := NewScript(config.Transcript{Python: "sh", ScriptPath: script, ConvertToWav: true})
	var converted string
	s.toWav = func(_ context.Context, in string) (string, error) {
		converted = in
		return wav, nil
	}

	res, err := s.Transcribe(context.Background(), media)
	require.NoError(t, err)
	assert.Equal(t, media, converted)
	assert.Equal(t, wav, res.Text)
	assert.NoFileExists(t, wav)
}

func TestScriptMissingFile(t *testing.T) {
	s := NewScript(config.Transcript{Python: "sh", ScriptPath: "unused.sh"})
	_, err := s.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.webm"))
	require.Error(t, err)
	assert.Equal(t, provider.CodeUnavailable, provider.CodeOf(err))
}

func TestWhisperTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "I led a team of five engineers."}`))
	}))
	defer srv.Close()

	media := writeFile(t, t.TempDir(), "answer.webm", "webm", 0o644)
	w := NewWhisper(config.Transcript{APIKey: "k", BaseURL: srv.URL, Timeout: 5 * time.Second})

	res, err := w.Transcribe(context.Background(), media)
	require.NoError(t, err)
	assert.Equal(t, "I led a team of five engineers.", res.Text)
}
