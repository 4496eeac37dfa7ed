package transcript

import (
	"context"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"strings"
	"time"
	"worker-evaluation/config"
	"worker-evaluation/pkg/provider"
)

const whisperProvider = "whisper"

type Whisper struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

func NewWhisper(cfg config.Transcript) *Whisper {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &Whisper{
		api:     openai.NewClientWithConfig(clientCfg),
		model:   model,
		timeout: cfg.Timeout,
	}
}

func (w *Whisper) Transcribe(ctx context.Context, filePath string) (*Result, error) {
	if err := checkFile(whisperProvider, filePath); err != nil {
		return nil, err
	}
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	zerolog.Ctx(ctx).Debug().Str("file", filePath).Msg("uploading media to whisper")
	resp, err := w.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: filePath,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return nil, provider.Wrap(ctx, whisperProvider, "transcription failed", err)
	}

	zerolog.Ctx(ctx).Debug().Int("length", len(resp.Text)).Msg("whisper transcription done")
	return &Result{Text: resp.Text}, nil
}
