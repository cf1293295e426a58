package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/menta2k/cardsynth/internal/utils"
	"github.com/menta2k/cardsynth/pkg/annotation"
	"github.com/menta2k/cardsynth/pkg/imagefile"
	"github.com/menta2k/cardsynth/pkg/overlay"
)

// newOverlayCommand creates the "overlay" command.
func newOverlayCommand() *cobra.Command {
	var (
		annotations string
		output      string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "overlay DATASET",
		Short: "Draw the labeled corners onto generated samples",
		Long: `Overlay reads the annotation file of a generated DATASET directory and writes
a copy of every labeled sample with its corner polygon drawn, so labels can be
checked by eye.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataset := args[0]
			logger := loggerFromContext(cmd.Context())

			annPath := annotations
			if !filepath.IsAbs(annPath) {
				annPath = filepath.Join(dataset, annPath)
			}
			records, err := annotation.ReadFile(annPath)
			if err != nil {
				return err
			}

			outDir := output
			if outDir == "" {
				outDir = filepath.Join(dataset, "overlay")
			}
			if err := utils.EnsureDir(outDir); err != nil {
				return err
			}

			prog := newProgress(logger)
			written := 0
			for _, rec := range records {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				if limit > 0 && written >= limit {
					break
				}

				img, err := imagefile.Load(filepath.Join(dataset, rec.Filename))
				if err != nil {
					logger.Warn("skipping sample", "file", rec.Filename, "err", err)
					continue
				}
				format, err := imagefile.ParseFormat(filepath.Ext(rec.Filename))
				if err != nil {
					format = imagefile.PNG
				}
				dst := filepath.Join(outDir, rec.Filename)
				if err := imagefile.Save(overlay.Draw(img, rec.Corners), dst, imagefile.SaveOptions{Format: format}); err != nil {
					return err
				}
				written++
			}

			prog.done(fmt.Sprintf("Wrote %d overlays to %s", written, outDir))
			return nil
		},
	}

	cmd.Flags().StringVar(&annotations, "annotations", "annotations.json", "annotation file, relative to DATASET")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default: DATASET/overlay)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of overlays (0 = all)")

	return cmd
}
