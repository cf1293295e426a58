package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/menta2k/cardsynth"
	"github.com/menta2k/cardsynth/pkg/annotation"
	"github.com/menta2k/cardsynth/pkg/generator"
	"github.com/menta2k/cardsynth/pkg/overlay"
)

// newSampleCommand creates the "sample" command.
func newSampleCommand(opts *options) *cobra.Command {
	var (
		seed        uint64
		label       string
		overlayPath string
	)

	cmd := &cobra.Command{
		Use:   "sample CARD BACKGROUND OUTPUT",
		Short: "Synthesize one sample from local files",
		Long: `Sample distorts the CARD image onto a random crop of the BACKGROUND photo,
writes the result to OUTPUT (format chosen by extension) and prints its
annotation as JSON.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg, err = validated(cfg); err != nil {
				return err
			}

			logger := loggerFromContext(cmd.Context())
			cs := cardsynth.NewWithConfig(cfg.TransformSettings(), cfg.CompositeSettings())

			ann, err := cs.SynthesizeFile(generator.NewRand(seed), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			if label != "" {
				ann.CardName = label
			}
			logger.Debug("sample written", "file", args[2], "corners", ann.Corners)

			if overlayPath != "" {
				img, err := cs.LoadImage(args[2])
				if err != nil {
					return err
				}
				if err := cs.SaveImage(overlay.Draw(img, ann.Corners), overlayPath); err != nil {
					return err
				}
				logger.Debug("overlay written", "file", overlayPath)
			}

			emitter := annotation.NewEmitter()
			emitter.Add(ann.Filename, ann.CardName, ann.Corners)
			data, err := emitter.Marshal()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 = time-based)")
	cmd.Flags().StringVar(&label, "label", "", "card name recorded in the annotation (default: card file name)")
	cmd.Flags().StringVar(&overlayPath, "overlay", "", "also write a copy with the labeled corners drawn")

	return cmd
}
