package texture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/Faultbox/volkit/internal/proc"
	"go.uber.org/zap"
)

// Basisu is a Codec backed by the Basis Universal command line tool.
type Basisu struct {
	command proc.CommandFunc
	timeout time.Duration
	level   int
	log     *zap.Logger
}

// NewBasisu returns a codec running the basisu binary at bin.
func NewBasisu(bin string, log *zap.Logger) *Basisu {
	return NewBasisuCommand(proc.Command(bin), log)
}

// NewBasisuCommand returns a codec using command to build invocations.
func NewBasisuCommand(command proc.CommandFunc, log *zap.Logger) *Basisu {
	if log == nil {
		log = zap.NewNop()
	}
	return &Basisu{command: command, timeout: 5 * time.Second, level: DefaultUASTCLevel, log: log}
}

// DefaultUASTCLevel is the basisu default UASTC pack level.
const DefaultUASTCLevel = 2

// SetTimeout sets the grace period between interrupt and kill on cancel.
func (b *Basisu) SetTimeout(d time.Duration) { b.timeout = d }

// SetUASTCLevel sets the UASTC pack level, 0 (fastest) to 4 (slowest).
// Values outside that range are clamped.
func (b *Basisu) SetUASTCLevel(level int) {
	b.level = min(max(level, 0), 4)
}

func (b *Basisu) run(ctx context.Context, args ...string) error {
	p := proc.New(b.command(ctx, args...))
	p.SetPrefix("basisu")
	p.SetTimeout(b.timeout)
	p.SetLogger(b.log)
	return p.Run(ctx)
}

// Decode unpacks a .basis blob to RGBA pixels.
func (b *Basisu) Decode(ctx context.Context, data []byte) (*image.NRGBA, error) {
	dir, err := os.MkdirTemp("", "volkit-basisu-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "frame.basis")
	if err := os.WriteFile(in, data, 0o644); err != nil {
		return nil, err
	}
	// 13 is the RGBA32 transcoder target.
	if err := b.run(ctx, "-unpack", "-no_ktx", "-format_only", "13", "-file", in, "-output_path", dir); err != nil {
		return nil, err
	}

	path, err := unpackedImage(dir)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("reading unpacked %s: %w", filepath.Base(path), err)
	}
	return toNRGBA(img), nil
}

// unpackedImage finds the level 0 RGBA image written by basisu -unpack.
func unpackedImage(dir string) (string, error) {
	for _, pattern := range []string{"*RGBA32*.png", "*rgba*.png", "*.png"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return "", err
		}
		if len(matches) > 0 {
			sort.Strings(matches)
			return matches[0], nil
		}
	}
	return "", fmt.Errorf("basisu wrote no image to %s", dir)
}

// Encode resamples img to width x height and compresses it to .basis.
func (b *Basisu) Encode(ctx context.Context, img image.Image, width, height int, v Variant) ([]byte, error) {
	dir, err := os.MkdirTemp("", "volkit-basisu-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	var buf bytes.Buffer
	if err := png.Encode(&buf, Resample(img, width, height)); err != nil {
		return nil, err
	}
	in := filepath.Join(dir, "frame.png")
	out := filepath.Join(dir, "frame.basis")
	if err := os.WriteFile(in, buf.Bytes(), 0o644); err != nil {
		return nil, err
	}

	args := []string{"-file", in, "-output_file", out}
	if v == UASTC {
		args = append(args, "-uastc", "-uastc_level", strconv.Itoa(b.level))
	}
	if err := b.run(ctx, args...); err != nil {
		return nil, err
	}
	return os.ReadFile(out)
}
