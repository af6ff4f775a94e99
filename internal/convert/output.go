package convert

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Faultbox/volkit/pkg/vols"
	"github.com/oklog/ulid/v2"
	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/zap"
)

// FreeFunc returns the free bytes on the volume holding path.
type FreeFunc func(path string) (uint64, error)

// DiskFree reports free space through gopsutil.
func DiskFree(path string) (uint64, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return u.Free, nil
}

// checkDiskSpace fails when the volume of dir has less than need bytes free.
func checkDiskSpace(free FreeFunc, dir string, need uint64) error {
	avail, err := free(dir)
	if err != nil {
		return fmt.Errorf("%w: checking free space on %s: %w", vols.ErrIO, dir, err)
	}
	if avail < need {
		return fmt.Errorf("%w: %s has %d bytes free, need %d", ErrInsufficientDiskSpace, dir, avail, need)
	}
	return nil
}

// output is a buffered file written under a temporary name and renamed
// into place by commit.
type output struct {
	path string
	tmp  string
	f    *os.File
	w    *bufio.Writer
	keep bool
	log  *zap.Logger

	closed bool
	done   bool
}

func createOutput(path string, keep bool, log *zap.Logger) (*output, error) {
	tmp := fmt.Sprintf("%s.%s.tmp", path, ulid.Make())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: creating output: %w", vols.ErrIO, err)
	}
	return &output{path: path, tmp: tmp, f: f, w: bufio.NewWriterSize(f, 1<<20), keep: keep, log: log}, nil
}

// stagedOutput is a temporary file written by someone else that commit
// renames to path. It is always removed on abort.
func stagedOutput(tmp, path string, log *zap.Logger) *output {
	return &output{path: path, tmp: tmp, log: log, closed: true}
}

func (o *output) Write(p []byte) (int, error) { return o.w.Write(p) }

// finish flushes, syncs and closes the file without moving it.
func (o *output) finish() error {
	if o.closed {
		return nil
	}
	o.closed = true
	err := o.w.Flush()
	if err == nil {
		err = o.f.Sync()
	}
	if cerr := o.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: writing %s: %w", vols.ErrIO, o.path, err)
	}
	return nil
}

func (o *output) place() error {
	if err := os.Rename(o.tmp, o.path); err != nil {
		return fmt.Errorf("%w: renaming %s: %w", vols.ErrIO, o.path, err)
	}
	o.done = true
	return nil
}

func (o *output) commit() error {
	err := o.finish()
	if err == nil {
		err = o.place()
	}
	if err != nil {
		o.abort()
	}
	return err
}

// abort closes the file and removes it unless partial output is kept.
// Outputs already renamed into place are left alone.
func (o *output) abort() {
	if o.done {
		return
	}
	o.done = true
	if !o.closed {
		_ = o.w.Flush()
		o.f.Close()
		o.closed = true
	}
	o.discard()
}

func (o *output) discard() {
	if o.keep {
		o.log.Warn("partial output kept", zap.String("path", o.tmp))
		return
	}
	if err := os.Remove(o.tmp); err != nil && !os.IsNotExist(err) {
		o.log.Warn("removing partial output", zap.String("path", o.tmp), zap.Error(err))
	}
}

// outputs commits or aborts a set of outputs together. Every file is
// finished before any is renamed, so a failed write places nothing. A
// rename failing part way leaves the earlier outputs in place; they are
// logged and the rest are aborted.
type outputs []*output

func (s outputs) commit() error {
	for _, o := range s {
		if err := o.finish(); err != nil {
			s.abort()
			return err
		}
	}
	for i, o := range s {
		if err := o.place(); err != nil {
			if i > 0 {
				placed := make([]string, 0, i)
				for _, p := range s[:i] {
					placed = append(placed, p.path)
				}
				o.log.Error("output set incomplete", zap.Strings("placed", placed), zap.Error(err))
			}
			s.abort()
			return err
		}
	}
	return nil
}

func (s outputs) abort() {
	for _, o := range s {
		o.abort()
	}
}

// copyFile copies src to dst through a temporary file.
func copyFile(dst, src string, keep bool, log *zap.Logger) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", vols.ErrIO, filepath.Base(src), err)
	}
	defer in.Close()

	out, err := createOutput(dst, keep, log)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.abort()
		return fmt.Errorf("%w: copying %s: %w", vols.ErrIO, filepath.Base(src), err)
	}
	return out.commit()
}

func fileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return st.Size()
}
