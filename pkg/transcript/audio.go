package transcript

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"worker-evaluation/pkg/pyscript"
)

var ffmpegBinary = "ffmpeg"

// ConvertToWav16k extracts a 16 kHz mono wav track into the temp dir. The caller removes the file.
func ConvertToWav16k(ctx context.Context, inputPath string) (string, error) {
	wavPath := filepath.Join(os.TempDir(), fmt.Sprintf("transcript-%s.wav", uuid.NewString()))

	ffmpegArgs := []string{
		"-y",
		"-i", inputPath,
		"-ar", "16000",
		"-ac", "1",
		wavPath,
	}

	cmd := exec.CommandContext(ctx, ffmpegBinary, ffmpegArgs...)
	zerolog.Ctx(ctx).Debug().Msgf("executing ffmpeg %s", strings.Join(ffmpegArgs, " "))

	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(wavPath)
		return "", fmt.Errorf("ffmpeg failed: %w: %s", err, pyscript.Tail(string(output), 500))
	}
	return wavPath, nil
}
