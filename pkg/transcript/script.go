package transcript

import (
	"context"
	"encoding/json"
	"github.com/rs/zerolog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"worker-evaluation/config"
	"worker-evaluation/pkg/provider"
	"worker-evaluation/pkg/pyscript"
)

const scriptProvider = "transcript-script"

// Script runs a WhisperX style script that prints {"text": ...} or {"transcript": ...} on stdout.
type Script struct {
	python     string
	scriptPath string
	convert    bool
	timeout    time.Duration
	toWav      func(ctx context.Context, inputPath string) (string, error)
}

func NewScript(cfg config.Transcript) *Script {
	python := cfg.Python
	if python == "" {
		python = "python3"
	}
	return &Script{
		python:     python,
		scriptPath: cfg.ScriptPath,
		convert:    cfg.ConvertToWav,
		timeout:    cfg.Timeout,
		toWav:      ConvertToWav16k,
	}
}

func (s *Script) Transcribe(ctx context.Context, filePath string) (*Result, error) {
	if err := checkFile(scriptProvider, filePath); err != nil {
		return nil, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	input := filePath
	if s.convert && !strings.EqualFold(filepath.Ext(filePath), ".wav") {
		wavPath, err := s.toWav(ctx, filePath)
		if err != nil {
			return nil, provider.Wrap(ctx, scriptProvider, "audio conversion failed", err)
		}
		defer os.Remove(wavPath)
		input = wavPath
	}

	out, err := pyscript.Run(ctx, s.python, s.scriptPath, input)
	if err != nil {
		return nil, provider.Wrap(ctx, scriptProvider, "script failed: "+pyscript.Tail(firstNonEmpty(out.Stderr, out.Stdout), 500), err)
	}

	var parsed struct {
		Text       string `json:"text"`
		Transcript string `json:"transcript"`
	}
	if err := json.Unmarshal([]byte(out.Stdout), &parsed); err != nil {
		return nil, provider.NewError(scriptProvider, provider.CodeInvalidOutput, "invalid JSON: "+pyscript.Tail(out.Stdout, 200), err)
	}

	text := firstNonEmpty(parsed.Text, parsed.Transcript)
	zerolog.Ctx(ctx).Debug().Int("length", len(text)).Msg("script transcription done")
	return &Result{Text: text}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
