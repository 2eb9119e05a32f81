package cli

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/shelf/internal/backend"
	"github.com/roach88/shelf/internal/record"
	"github.com/roach88/shelf/internal/store"
)

// ImageView is the printable form of an image. Data is summarized by size.
type ImageView struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
	Size  int    `json:"size"`
}

func (v ImageView) String() string {
	return fmt.Sprintf("%s\t%s\t%s\t%d bytes", v.ID, v.Title, v.Type, v.Size)
}

func viewImage(img record.Image) ImageView {
	return ImageView{ID: img.Key(), Title: img.Title, Type: img.Type, Size: len(img.Data)}
}

// ImageList prints one image per line in text mode.
type ImageList []ImageView

func (l ImageList) String() string {
	if len(l) == 0 {
		return "No images."
	}
	lines := make([]string, len(l))
	for i, v := range l {
		lines[i] = v.String()
	}
	return strings.Join(lines, "\n")
}

// NewImagesCommand creates the images command group.
func NewImagesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Manage stored images",
	}
	cmd.AddCommand(newImagesAddCommand(rootOpts))
	cmd.AddCommand(newImagesGetCommand(rootOpts))
	cmd.AddCommand(newImagesListCommand(rootOpts))
	cmd.AddCommand(newImagesDeleteCommand(rootOpts))
	return cmd
}

func openImages(opts *RootOptions, out *OutputFormatter) (store.Store[record.Image], error) {
	s, err := backend.OpenImages(opts.Config.Store, opts.deps())
	if err != nil {
		return nil, out.Fail("failed to open image store", err)
	}
	return s, nil
}

func newImagesAddCommand(rootOpts *RootOptions) *cobra.Command {
	var title, fileType string

	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Store an image file",
		Long: `Store an image file and print its id.

The title defaults to the file name. The type is sniffed from the
file contents when --type is not given.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			data, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read image file", err)
			}
			if title == "" {
				title = filepath.Base(args[0])
			}
			if fileType == "" {
				fileType = http.DetectContentType(data)
			}

			s, err := openImages(rootOpts, out)
			if err != nil {
				return err
			}
			defer s.Close()

			img := record.ImageData{Name: title, Data: data, FileType: fileType}.Image()
			id, err := s.Insert(cmd.Context(), img)
			if err != nil {
				return out.Fail("failed to store image", err)
			}
			rootOpts.log().Info("stored image", "id", id, "title", title, "bytes", len(data))
			return out.Success(viewImage(img.WithKey(id)))
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "image title (default: file name)")
	cmd.Flags().StringVar(&fileType, "type", "", "MIME type (default: sniffed)")
	return cmd
}

func newImagesGetCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:           "get <id>",
		Short:         "Show an image, optionally writing its bytes to a file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			s, err := openImages(rootOpts, out)
			if err != nil {
				return err
			}
			defer s.Close()

			img, found, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return out.Fail("failed to read image", err)
			}
			if !found {
				return out.Fail(fmt.Sprintf("image %s not found", args[0]), store.NotFound("get", args[0]))
			}

			if output != "" {
				if err := os.WriteFile(output, img.Data, 0o644); err != nil {
					return WrapExitError(ExitCommandError, "failed to write image file", err)
				}
			}
			return out.Success(viewImage(img))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write image bytes to this file")
	return cmd
}

func newImagesListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored images",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			s, err := openImages(rootOpts, out)
			if err != nil {
				return err
			}
			defer s.Close()

			images, err := s.GetAll(cmd.Context())
			if err != nil {
				return out.Fail("failed to list images", err)
			}
			list := make(ImageList, len(images))
			for i, img := range images {
				list[i] = viewImage(img)
			}
			return out.Success(list)
		},
	}
}

func newImagesDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete an image",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			s, err := openImages(rootOpts, out)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Delete(cmd.Context(), args[0]); err != nil {
				return out.Fail(fmt.Sprintf("failed to delete image %s", args[0]), err)
			}
			return out.Success(fmt.Sprintf("deleted image %s", args[0]))
		},
	}
}
