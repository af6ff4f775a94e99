package main

import (
	"github.com/Faultbox/volkit/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newConfigCmd(a *app) *cobra.Command {
	var (
		save  bool
		write string
	)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration, or save it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case write != "":
				if err := a.cfg.SaveTo(write); err != nil {
					return err
				}
				logger.Success("configuration written", zap.String("path", write))
			case save:
				path, err := a.cfg.Save()
				if err != nil {
					return err
				}
				logger.Success("configuration saved", zap.String("path", path))
			default:
				data, err := a.cfg.Marshal()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Save to the user config directory")
	cmd.Flags().StringVar(&write, "write", "", "Write to this path")
	return cmd
}
