package transcript

import (
	"context"
	"fmt"
	"os"
	"worker-evaluation/config"
	"worker-evaluation/constant"
	"worker-evaluation/pkg/provider"
)

type Result struct {
	Text string `json:"text"`
}

// Provider turns a media file into spoken text.
type Provider interface {
	Transcribe(ctx context.Context, filePath string) (*Result, error)
}

func New(cfg config.Transcript) (Provider, error) {
	switch cfg.Backend {
	case constant.TranscriptBackendOpenAI:
		if cfg.APIKey == "" {
			return nil, provider.NewError(whisperProvider, provider.CodeNotConfigured, "transcript.api_key is not set", nil)
		}
		return NewWhisper(cfg), nil
	case constant.TranscriptBackendScript:
		if cfg.ScriptPath == "" {
			return nil, provider.NewError(scriptProvider, provider.CodeNotConfigured, "transcript.script_path is not set", nil)
		}
		return NewScript(cfg), nil
	}
	return nil, fmt.Errorf("unsupported transcript backend %q", cfg.Backend)
}

func checkFile(name, filePath string) error {
	if filePath == "" {
		return provider.NewError(name, provider.CodeUnavailable, "empty file path", nil)
	}
	if _, err := os.Stat(filePath); err != nil {
		return provider.NewError(name, provider.CodeUnavailable, "file not found for transcription: "+filePath, err)
	}
	return nil
}

// Unavailable fails every call with err. It stands in when no backend is configured so runs
// still end in a failed status instead of the worker refusing to start.
type Unavailable struct {
	Err error
}

func (u Unavailable) Transcribe(context.Context, string) (*Result, error) {
	return nil, u.Err
}
