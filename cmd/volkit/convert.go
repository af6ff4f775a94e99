package main

import (
	"github.com/Faultbox/volkit/internal/convert"
	"github.com/Faultbox/volkit/internal/logger"
	"github.com/Faultbox/volkit/pkg/texture"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newConvertCmd(a *app) *cobra.Command {
	var (
		opts        convert.Options
		textureSize string
		first, last int
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Rewrite a container, optionally cutting frames, stripping normals or resizing textures",
		Example: `  volkit convert -i in.vols -o out.vols --no-normals
  volkit convert -i in.vols -o out.vols --first 15 --last 25
  volkit convert --header header.vols -s sequence_0.vols -v texture.mp4 \
      --out-header out/header.vols --out-sequence out/sequence_0.vols --out-video out/texture.mp4
  volkit convert -i in.vols -o small.vols -t 512x512`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if textureSize != "" {
				size, err := texture.ParseSize(textureSize, a.cfg.Texture.MaxSize)
				if err != nil {
					return err
				}
				opts.TextureSize = size
			}
			opts.Frames = convert.Range{Start: first, End: last}
			opts.DiskHeadroom = a.cfg.Output.DiskHeadroomMB << 20
			opts.KeepPartial = a.cfg.Output.KeepPartial

			res, err := a.converter().Run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			fields := []zap.Field{
				zap.Int("frames", res.Frames),
				zap.Stringer("range", res.Range),
				zap.Int("promoted", res.Promoted),
			}
			if res.Transcoded > 0 {
				fields = append(fields, zap.Int("textures", res.Transcoded))
			}
			if res.Audio.Copied > 0 {
				fields = append(fields, zap.Duration("audio", res.Audio.Duration))
			}
			if res.Video {
				fields = append(fields, zap.String("video", opts.Output.Video))
			}
			logger.Success("done", fields...)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Input.Container, "input", "i", "", "Input container (single-file vologram)")
	f.StringVar(&opts.Input.Header, "header", "", "Input header file (multi-file vologram)")
	f.StringVarP(&opts.Input.Sequence, "sequence", "s", "", "Input sequence file (multi-file vologram)")
	f.StringVarP(&opts.Input.Video, "video", "v", "", "Input video texture")
	f.StringVarP(&opts.Output.Container, "output", "o", "", "Output container")
	f.StringVar(&opts.Output.Header, "out-header", "", "Output header file")
	f.StringVar(&opts.Output.Sequence, "out-sequence", "", "Output sequence file")
	f.StringVar(&opts.Output.Video, "out-video", "", "Output video texture, cut to the frame range")
	f.BoolVarP(&opts.StripNormals, "no-normals", "n", false, "Remove normals from the output")
	f.StringVarP(&textureSize, "texture-size", "t", "", "Resize textures, e.g. 512x512")
	f.IntVar(&first, "first", 0, "First frame to export (0-based)")
	f.IntVar(&last, "last", -1, "Last frame to export, inclusive (-1 = last frame)")
	f.Float64Var(&opts.FPS, "fps", 0, "Frame rate for audio and video cutting (default: header rate)")
	return cmd
}
