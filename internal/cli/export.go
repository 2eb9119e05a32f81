package cli

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/shelf/internal/config"
	"github.com/roach88/shelf/internal/record"
)

// ExportDocument is the YAML form of a whole store.
type ExportDocument struct {
	Backend string         `yaml:"backend"`
	Images  []ExportImage  `yaml:"images"`
	Verses  []record.Verse `yaml:"verses,omitempty"`
}

// ExportImage carries image bytes as base64 so the document stays text.
type ExportImage struct {
	record.Image `yaml:",inline"`
	Data         string `yaml:"data"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every record in the store as YAML",
		Long: `Write every record in the store as YAML.

Verses are included on the bolt backend, which is the only one that
holds them. Image bytes are base64 encoded.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			doc, err := collectExport(cmd, rootOpts, out)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to create export file", err)
				}
				defer f.Close()
				w = f
			}
			if err := writeExport(w, doc); err != nil {
				return WrapExitError(ExitCommandError, "failed to write export", err)
			}

			rootOpts.log().Info("exported store", "images", len(doc.Images), "verses", len(doc.Verses))
			if output != "" {
				return out.Success(fmt.Sprintf("exported %d images and %d verses to %s", len(doc.Images), len(doc.Verses), output))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

// collectExport reads each record kind in turn, so only one handle holds
// the bolt file lock at a time.
func collectExport(cmd *cobra.Command, opts *RootOptions, out *OutputFormatter) (ExportDocument, error) {
	doc := ExportDocument{Backend: opts.Config.Store.Backend, Images: []ExportImage{}}

	images, err := openImages(opts, out)
	if err != nil {
		return doc, err
	}
	all, err := images.GetAll(cmd.Context())
	images.Close()
	if err != nil {
		return doc, out.Fail("failed to read images", err)
	}
	for _, img := range all {
		doc.Images = append(doc.Images, ExportImage{
			Image: img,
			Data:  base64.StdEncoding.EncodeToString(img.Data),
		})
	}

	if opts.Config.Store.Backend != config.BackendBolt {
		return doc, nil
	}
	verses, err := openVerses(opts, out)
	if err != nil {
		return doc, err
	}
	doc.Verses, err = verses.GetAll(cmd.Context())
	verses.Close()
	if err != nil {
		return doc, out.Fail("failed to read verses", err)
	}
	return doc, nil
}

func writeExport(w io.Writer, doc ExportDocument) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
