// Package transcode slows audio by resampling it at a reduced rate, the
// 45-to-33 RPM trick: pitch drops together with tempo, like putting a 45
// single on a turntable at 33.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/slowtunes/slowtunes/internal/config"
)

const sampleRate = 44100

// FFmpeg shells out to an ffmpeg binary. Satisfies ports.Transcoder.
type FFmpeg struct {
	binary  string
	postfix string
	log     *slog.Logger
}

// New creates the adapter from config. The binary is not checked here;
// a missing ffmpeg surfaces on the first Process call.
func New(cfg *config.Config, log *slog.Logger) *FFmpeg {
	return &FFmpeg{
		binary:  cfg.Audio.FFmpegPath,
		postfix: cfg.Audio.FilePostfix,
		log:     log,
	}
}

// Process re-encodes inputRef at speedRatio of its original rate and writes
// the result next to the input. Returns the output path.
func (f *FFmpeg) Process(ctx context.Context, inputRef string, speedRatio float64) (string, error) {
	outputRef := f.OutputName(inputRef)

	filter := fmt.Sprintf("asetrate=%d*%g,aresample=%d", sampleRate, speedRatio, sampleRate)
	cmd := exec.CommandContext(ctx, f.binary,
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", inputRef,
		"-vn",
		"-af", filter,
		outputRef,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	f.log.Debug("running ffmpeg", "input", inputRef, "output", outputRef, "filter", filter)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg failed: %w: %s", err, lastLine(stderr.String()))
	}
	return outputRef, nil
}

// OutputName derives the slowed file's path: extension stripped, branded
// postfix appended.
func (f *FFmpeg) OutputName(inputRef string) string {
	base := strings.TrimSuffix(inputRef, filepath.Ext(inputRef))
	return base + f.postfix
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
