package convert

import (
	"context"
	"errors"

	"github.com/Faultbox/volkit/pkg/media"
	"github.com/Faultbox/volkit/pkg/texture"
	"github.com/Faultbox/volkit/pkg/vols"
)

// ErrInsufficientDiskSpace is returned when the output volume cannot hold
// the converted container.
var ErrInsufficientDiskSpace = errors.New("insufficient disk space")

var classes = []struct {
	err  error
	name string
}{
	{vols.ErrMalformedHeader, "MalformedHeader"},
	{vols.ErrUnsupportedVersion, "UnsupportedVersion"},
	{vols.ErrFrameIndexOutOfRange, "FrameIndexOutOfRange"},
	{vols.ErrCorruptFrameBody, "CorruptFrameBody"},
	{texture.ErrTranscode, "TextureTranscodeError"},
	{ErrInsufficientDiskSpace, "InsufficientDiskSpace"},
	{vols.ErrIO, "IoError"},
	{media.ErrSeekFailed, "IoError"},
	{context.Canceled, "Cancelled"},
	{context.DeadlineExceeded, "Cancelled"},
}

// Classify returns the failure class of err, or "Error" when err matches
// none of the known classes.
func Classify(err error) string {
	for _, c := range classes {
		if errors.Is(err, c.err) {
			return c.name
		}
	}
	return "Error"
}
