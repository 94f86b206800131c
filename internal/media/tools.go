// Package media wraps the local tooling the pipeline needs between the
// staged artifact and the AI capabilities: ffmpeg for frame and audio
// extraction, plus format-specific document text readers.
//
// REQUIRED BINARY in the worker runtime: ffmpeg.
package media

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/filedrive/semdex/internal/logger"
)

// FrameExtractor produces one representative still frame from a video.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, videoPath string) (imagePath string, err error)
}

// AudioExtractor transcodes any media file to a normalized waveform the
// transcription capability accepts: mono, 16 kHz, 16-bit PCM WAV.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, mediaPath string) (wavPath string, err error)
}

// Tools is the ffmpeg-backed implementation of both extractors.
type Tools struct {
	ffmpegPath string
	timeout    time.Duration
	log        *logger.Logger
}

// NewTools builds the ffmpeg wrapper. timeout bounds each invocation;
// zero means 2 minutes.
func NewTools(timeout time.Duration, log *logger.Logger) *Tools {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Tools{
		ffmpegPath: "ffmpeg",
		timeout:    timeout,
		log:        log.With("service", "MediaTools"),
	}
}

// AssertReady verifies the ffmpeg binary is reachable.
func (t *Tools) AssertReady(ctx context.Context) error {
	if _, err := exec.LookPath(t.ffmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	return nil
}

// ExtractFrame grabs a single frame one second into the video. The output
// lives next to the input and is the caller's to delete.
func (t *Tools) ExtractFrame(ctx context.Context, videoPath string) (string, error) {
	framePath := videoPath + "_frame.jpg"
	args := []string{
		"-y",
		"-ss", "00:00:01",
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		framePath,
	}
	if err := t.run(ctx, args); err != nil {
		return "", fmt.Errorf("extract frame from %s: %w", videoPath, err)
	}
	return framePath, nil
}

// ExtractAudio transcodes the media file's audio track to mono 16 kHz
// 16-bit PCM WAV. The output lives next to the input and is the caller's
// to delete.
func (t *Tools) ExtractAudio(ctx context.Context, mediaPath string) (string, error) {
	wavPath := mediaPath + ".wav"
	args := []string{
		"-y",
		"-i", mediaPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		wavPath,
	}
	if err := t.run(ctx, args); err != nil {
		return "", fmt.Errorf("extract audio from %s: %w", mediaPath, err)
	}
	return wavPath, nil
}

func (t *Tools) run(ctx context.Context, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	t.log.Debug("running ffmpeg", "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, tail(stderr.String(), 512))
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
