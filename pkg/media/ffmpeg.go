package media

import (
	"context"
	"strconv"
	"time"

	"github.com/Faultbox/volkit/internal/proc"
	"go.uber.org/zap"
)

// FFmpeg trims video files by stream copy.
type FFmpeg struct {
	command proc.CommandFunc
	timeout time.Duration
	log     *zap.Logger
}

// NewFFmpeg returns a trimmer running the ffmpeg binary at bin.
func NewFFmpeg(bin string, log *zap.Logger) *FFmpeg {
	return NewFFmpegCommand(proc.Command(bin), log)
}

// NewFFmpegCommand returns a trimmer using command to build invocations.
func NewFFmpegCommand(command proc.CommandFunc, log *zap.Logger) *FFmpeg {
	if log == nil {
		log = zap.NewNop()
	}
	return &FFmpeg{command: command, timeout: 5 * time.Second, log: log}
}

// SetTimeout sets the grace period between interrupt and kill on cancel.
func (f *FFmpeg) SetTimeout(d time.Duration) { f.timeout = d }

// TrimArgs returns the ffmpeg arguments that copy the window of in to out.
// The seek is an output option so packets before the window start are
// dropped instead of pulled back to the preceding keyframe; output frame k
// stays aligned with mesh frame start+k.
func TrimArgs(in, out string, w Window) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", in,
		"-ss", formatSeconds(w.Start),
		"-t", formatSeconds(w.Duration()),
		"-map", "0",
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		out,
	}
}

// TrimVideo copies the packets of in that fall inside w to out.
func (f *FFmpeg) TrimVideo(ctx context.Context, in, out string, w Window) error {
	f.log.Info("trimming video", zap.String("input", in), zap.Stringer("window", w))
	p := proc.New(f.command(ctx, TrimArgs(in, out, w)...))
	p.SetPrefix("ffmpeg")
	p.SetTimeout(f.timeout)
	p.SetLogger(f.log)
	return p.Run(ctx)
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}
