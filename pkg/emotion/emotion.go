package emotion

import (
	"context"
	"encoding/json"
	"github.com/rs/zerolog"
	"os"
	"time"
	"worker-evaluation/config"
	"worker-evaluation/entities"
	"worker-evaluation/pkg/provider"
	"worker-evaluation/pkg/pyscript"
)

const providerName = "deepface"

// Provider analyses facial emotion over a clip. A nil result with a nil error means no backend is configured.
type Provider interface {
	Analyze(ctx context.Context, filePath string) (*entities.EmotionResult, error)
}

func New(cfg config.Emotion) Provider {
	if !cfg.Enabled() {
		return Disabled{}
	}
	return NewScript(cfg)
}

type Disabled struct{}

func (Disabled) Analyze(ctx context.Context, _ string) (*entities.EmotionResult, error) {
	zerolog.Ctx(ctx).Debug().Msg("emotion script not configured, skipping analysis")
	return nil, nil
}

// Script runs a DeepFace style analyzer that prints one JSON document on stdout.
type Script struct {
	python     string
	scriptPath string
	timeout    time.Duration
}

func NewScript(cfg config.Emotion) *Script {
	python := cfg.Python
	if python == "" {
		python = "python3"
	}
	return &Script{python: python, scriptPath: cfg.ScriptPath, timeout: cfg.Timeout}
}

type scriptOutput struct {
	entities.EmotionResult
	Error string `json:"error"`
}

func (s *Script) Analyze(ctx context.Context, filePath string) (*entities.EmotionResult, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, provider.NewError(providerName, provider.CodeUnavailable, "file not found for emotion analysis: "+filePath, err)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, runErr := pyscript.Run(ctx, s.python, s.scriptPath, filePath)
	if ctx.Err() != nil {
		return nil, provider.Wrap(ctx, providerName, "analysis timed out", ctx.Err())
	}

	// TensorFlow writes warnings to stderr and can exit non-zero after printing a valid result.
	if out.Stdout != "" {
		var parsed scriptOutput
		if err := json.Unmarshal([]byte(out.Stdout), &parsed); err == nil {
			if parsed.Error != "" {
				return nil, provider.NewError(providerName, provider.CodeInvalidOutput, "analyzer reported: "+parsed.Error, nil)
			}
			zerolog.Ctx(ctx).Debug().
				Int("analyzed_frames", parsed.AnalyzedFrames).
				Int("faces_detected", parsed.FacesDetected).
				Msg("emotion analysis done")
			result := parsed.EmotionResult
			return &result, nil
		}
	}

	if runErr != nil {
		detail := out.Stderr
		if detail == "" {
			detail = out.Stdout
		}
		return nil, provider.Wrap(ctx, providerName, "analyzer failed: "+pyscript.Tail(detail, 500), runErr)
	}
	return nil, provider.NewError(providerName, provider.CodeInvalidOutput, "analyzer produced no output", nil)
}
