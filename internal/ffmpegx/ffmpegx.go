// Package ffmpegx shells out to the ffmpeg binary for the video chapter
// format: encoding page strips into H.265 MKV files and extracting the
// frames back out. ffmpeg is an external tool, not a Go dependency, so
// every entry point checks for the binary first and fails with an
// actionable message when it is absent.
package ffmpegx

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/pkathuria/comicden/internal/errs"
)

// EncodeParams is the quality tuple passed to libx265.
type EncodeParams struct {
	FPS    int
	CRF    int
	Preset string
	Tune   string
}

func installHint() string {
	switch runtime.GOOS {
	case "darwin":
		return "install it with 'brew install ffmpeg'"
	case "windows":
		return "install it from https://ffmpeg.org/download.html and add it to PATH"
	default:
		return "install it with your package manager, e.g. 'apt install ffmpeg'"
	}
}

// Available reports whether the ffmpeg binary can be found.
func Available() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

func require() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return errs.New(errs.KindDriverMissing, "ffmpeg is not installed; %s", installHint())
	}
	return nil
}

func run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return errs.Wrap(errs.KindCancelled, ctx.Err(), "ffmpeg interrupted")
		}
		msg := stderr.String()
		if len(msg) > 400 {
			msg = msg[len(msg)-400:]
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, msg)
	}
	return nil
}

// EncodeSlideshow turns a numbered PNG sequence (framePattern such as
// "dir/%03d.png") into an H.265 MKV slideshow.
func EncodeSlideshow(ctx context.Context, framePattern, out string, p EncodeParams) error {
	if err := require(); err != nil {
		return err
	}
	return run(ctx,
		"-y",
		"-framerate", fmt.Sprintf("%d", p.FPS),
		"-start_number", "1",
		"-i", framePattern,
		"-c:v", "libx265",
		"-crf", fmt.Sprintf("%d", p.CRF),
		"-preset", p.Preset,
		"-tune", p.Tune,
		"-pix_fmt", "yuv420p",
		// libx265 needs even dimensions.
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		out,
	)
}

// ExtractFrames dumps every frame of a video chapter as numbered PNGs
// (framePattern such as "dir/%03d.png").
func ExtractFrames(ctx context.Context, in, framePattern string) error {
	if err := require(); err != nil {
		return err
	}
	return run(ctx,
		"-y",
		"-i", in,
		"-start_number", "1",
		framePattern,
	)
}
