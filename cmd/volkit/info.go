package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Faultbox/volkit/pkg/media"
	"github.com/Faultbox/volkit/pkg/vols"
	"github.com/spf13/cobra"
)

// inputFlags select a single-file container by argument or a split one by
// flags.
type inputFlags struct {
	header   string
	sequence string
}

func (in *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&in.header, "header", "", "Header file (multi-file vologram)")
	cmd.Flags().StringVarP(&in.sequence, "sequence", "s", "", "Sequence file (multi-file vologram)")
}

func (in *inputFlags) open(args []string) (*vols.Container, string, error) {
	switch {
	case len(args) == 1 && in.header == "" && in.sequence == "":
		c, err := vols.Open(args[0])
		return c, args[0], err
	case len(args) == 0 && in.header != "" && in.sequence != "":
		c, err := vols.OpenSplit(in.header, in.sequence)
		return c, in.header, err
	default:
		return nil, "", fmt.Errorf("give a container path, or --header and --sequence")
	}
}

func newInfoCmd(a *app) *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "info [container]",
		Short: "Show container header, keyframes and frame statistics",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, name, err := in.open(args)
			if err != nil {
				return err
			}
			defer c.Close()
			return printInfo(cmd.OutOrStdout(), name, c)
		},
	}
	in.register(cmd)
	return cmd
}

func printInfo(out io.Writer, name string, c *vols.Container) error {
	h := c.Header
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "File:\t%s\n", name)
	fmt.Fprintf(w, "Format:\t%s dialect, version %d\n", h.Dialect, h.Version)
	if h.Version < 13 {
		fmt.Fprintf(w, "Mesh:\t%s (material %s, shader %s, topology %d)\n", h.MeshName, h.Material, h.Shader, h.Topology)
	}
	fmt.Fprintf(w, "Frames:\t%d\n", c.FrameCount())
	fmt.Fprintf(w, "Normals:\t%s\n", yesNo(h.HasNormals()))
	switch {
	case !h.HasTextures():
		fmt.Fprintf(w, "Texture:\tnone\n")
	case h.Version >= 13:
		fmt.Fprintf(w, "Texture:\t%dx%d %s, compression %d\n", h.TextureWidth, h.TextureHeight, h.TextureContainer, h.TextureCompression)
	default:
		fmt.Fprintf(w, "Texture:\t%dx%d, format %d\n", h.TextureWidth, h.TextureHeight, h.TextureFormat)
	}
	if h.Version == 12 {
		fmt.Fprintf(w, "Transform:\ttranslation %v rotation %v scale %g\n", h.Translation, h.Rotation, h.Scale)
	}
	if h.Version >= 13 {
		fmt.Fprintf(w, "FPS:\t%g\n", h.FPS)
	}
	if h.HasAudio() {
		fmt.Fprintf(w, "Audio:\t%s\n", audioSummary(c.Audio()))
	}

	x := c.Index()
	keys := x.Keyframes()
	fmt.Fprintf(w, "Keyframes:\t%d [%s]\n", len(keys), joinInts(keys, 16))

	var total, minSize, maxSize uint64
	for i := 0; i < x.Len(); i++ {
		e, err := x.Entry(i)
		if err != nil {
			return err
		}
		sz := uint64(e.MeshDataSize)
		total += sz
		if i == 0 || sz < minSize {
			minSize = sz
		}
		maxSize = max(maxSize, sz)
	}
	if n := uint64(x.Len()); n > 0 {
		fmt.Fprintf(w, "Frame sizes:\tmin %d, max %d, avg %d, total %d bytes\n", minSize, maxSize, total/n, total)

		f, err := c.ReadFrame(0)
		if err != nil {
			return err
		}
		b := f.Bounds()
		fmt.Fprintf(w, "Frame 0:\t%d vertices, %d triangles\n", f.VertexCount(), f.TriangleCount())
		fmt.Fprintf(w, "Bounds:\tmin (%.3f, %.3f, %.3f) max (%.3f, %.3f, %.3f)\n",
			b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
	}
	return w.Flush()
}

func audioSummary(data []byte) string {
	s := fmt.Sprintf("%d bytes", len(data))
	d, err := media.NewMP3Demuxer(data)
	if err != nil {
		return s + ", not MP3"
	}
	s += fmt.Sprintf(", mp3, %d frames, %s", d.Frames(), d.Duration().Round(1e6))
	if info, err := media.ProbeMP3(data); err == nil {
		s += fmt.Sprintf(", %d Hz, %d ch", info.SampleRate, info.Channels)
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func joinInts(v []int, limit int) string {
	parts := make([]string, 0, min(len(v), limit)+1)
	for i, n := range v {
		if i == limit {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, fmt.Sprint(n))
	}
	return strings.Join(parts, " ")
}
