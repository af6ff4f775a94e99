package main

import (
	"fmt"

	"github.com/Faultbox/volkit/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newVerifyCmd(a *app) *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "verify [container]",
		Short: "Decode every frame and check its size fields",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, name, err := in.open(args)
			if err != nil {
				return err
			}
			defer c.Close()

			x := c.Index()
			var renumbered int
			for i := 0; i < c.FrameCount(); i++ {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				body, err := c.ReadFrame(i)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				if int(body.Number) != i {
					renumbered++
				}
				if i == 0 && !body.Keyframe.IsKey() {
					return fmt.Errorf("%s: frame 0 is not a keyframe", name)
				}
			}
			if renumbered > 0 {
				a.log.Warn("frame numbers do not match positions", zap.Int("frames", renumbered))
			}
			logger.Success("container ok",
				zap.String("file", name),
				zap.Int("frames", c.FrameCount()),
				zap.Int("keyframes", len(x.Keyframes())))
			return nil
		},
	}
	in.register(cmd)
	return cmd
}
