package emotion

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
	"worker-evaluation/config"
	"worker-evaluation/pkg/provider"
)

const deepfaceOutput = `{"video_duration_sec": 12.5, "fps": 30, "total_frames": 375, "analyzed_frames": 25, "faces_detected": 24,
"emotions_timeline": [{"frame": 0, "timestamp_sec": 0, "dominant_emotion": "neutral", "scores": {"neutral": 81.2, "happy": 10.1}}],
"summary": {"dominant_emotion_overall": "happy", "longest_emotion": {"emotion": "happy", "duration_sec": 6.5},
"emotion_distribution_percent": {"happy": 60, "neutral": 40}, "average_scores": {"happy": 55.3, "neutral": 30.2}}}`

func setup(t *testing.T, script string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	media := filepath.Join(dir, "answer.webm")
	require.NoError(t, os.WriteFile(media, []byte("webm"), 0o644))
	scriptPath := filepath.Join(dir, "deepface.sh")
	require.NoError(t, os.WriteFile(scriptPath, []byte(script), 0o755))
	return media, scriptPath
}

func TestNewDisabledWithoutScript(t *testing.T) {
	p := New(config.Emotion{})
	res, err := p.Analyze(context.Background(), "anything.webm")
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestScriptAnalyze(t *testing.T) {
	media, script := setup(t, "cat <<'JSON'\n"+deepfaceOutput+"\nJSON\n")
	p := New(config.Emotion{Python: "sh", ScriptPath: script, Timeout: 5 * time.Second})

	res, err := p.Analyze(context.Background(), media)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 25, res.AnalyzedFrames)
	assert.Equal(t, "happy", res.Summary.DominantEmotionOverall)
	assert.Equal(t, 6.5, res.Summary.LongestEmotion.DurationSec)
	require.Len(t, res.Timeline, 1)
	assert.Equal(t, 81.2, res.Timeline[0].Scores["neutral"])
}

func TestScriptAnalyzeAcceptsOutputDespiteExitCode(t *testing.T) {
	media, script := setup(t, "echo 'tf warning' >&2\ncat <<'JSON'\n"+deepfaceOutput+"\nJSON\nexit 1\n")
	p := NewScript(config.Emotion{Python: "sh", ScriptPath: script})

	res, err := p.Analyze(context.Background(), media)
	require.NoError(t, err)
	assert.Equal(t, 24, res.FacesDetected)
}

func TestScriptAnalyzeFailures(t *testing.T) {
	tests := []struct {
		name   string
		script string
		code   provider.ErrorCode
	}{
		{name: "error key", script: `echo '{"error": "no face detected"}'`, code: provider.CodeInvalidOutput},
		{name: "crash without json", script: "echo 'Traceback' >&2\nexit 2", code: provider.CodeUnavailable},
		{name: "no output", script: "true", code: provider.CodeInvalidOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			media, script := setup(t, tt.script+"\n")
			p := NewScript(config.Emotion{Python: "sh", ScriptPath: script})

			res, err := p.Analyze(context.Background(), media)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.code, provider.CodeOf(err))
		})
	}
}

func TestScriptAnalyzeTimeout(t *testing.T) {
	media, script := setup(t, "exec sleep 5\n")
	p := NewScript(config.Emotion{Python: "sh", ScriptPath: script, Timeout: 100 * time.Millisecond})

	_, err := p.Analyze(context.Background(), media)
	require.Error(t, err)
	assert.Equal(t, provider.CodeTimeout, provider.CodeOf(err))
}
