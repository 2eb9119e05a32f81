package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/shelf/internal/backend"
	"github.com/roach88/shelf/internal/record"
	"github.com/roach88/shelf/internal/store"
)

// VerseView is the printable form of a verse.
type VerseView struct {
	record.Verse
}

func (v VerseView) String() string {
	return fmt.Sprintf("%s\t%s\t%s", v.ID, v.Reference(), v.Text)
}

// VerseList prints one verse per line in text mode.
type VerseList []VerseView

func (l VerseList) String() string {
	if len(l) == 0 {
		return "No verses."
	}
	lines := make([]string, len(l))
	for i, v := range l {
		lines[i] = v.String()
	}
	return strings.Join(lines, "\n")
}

// NewVersesCommand creates the verses command group.
func NewVersesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verses",
		Short: "Manage stored verses (bolt backend only)",
	}
	cmd.AddCommand(newVersesAddCommand(rootOpts))
	cmd.AddCommand(newVersesGetCommand(rootOpts))
	cmd.AddCommand(newVersesListCommand(rootOpts))
	cmd.AddCommand(newVersesDeleteCommand(rootOpts))
	return cmd
}

func openVerses(opts *RootOptions, out *OutputFormatter) (store.Store[record.Verse], error) {
	s, err := backend.OpenVerses(opts.Config.Store, opts.deps())
	if err != nil {
		return nil, out.Fail("failed to open verse store", err)
	}
	return s, nil
}

func newVersesAddCommand(rootOpts *RootOptions) *cobra.Command {
	var v record.Verse

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store a verse and print its id",
		Long: `Store a verse and print its id.

Without --id a time-ordered UUID is assigned. With --id an existing
verse under that id is replaced.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			s, err := openVerses(rootOpts, out)
			if err != nil {
				return err
			}
			defer s.Close()

			id, err := s.Insert(cmd.Context(), v)
			if err != nil {
				return out.Fail("failed to store verse", err)
			}
			rootOpts.log().Info("stored verse", "id", id, "reference", v.Reference())
			return out.Success(VerseView{v.WithKey(id)})
		},
	}

	cmd.Flags().StringVar(&v.ID, "id", "", "verse id (default: generated)")
	cmd.Flags().StringVar(&v.Book, "book", "", "book name")
	cmd.Flags().IntVar(&v.Chapter, "chapter", 0, "chapter number")
	cmd.Flags().IntVar(&v.Verse, "verse", 0, "verse number")
	cmd.Flags().StringVar(&v.Text, "text", "", "verse text")
	_ = cmd.MarkFlagRequired("book")
	_ = cmd.MarkFlagRequired("chapter")
	_ = cmd.MarkFlagRequired("verse")
	return cmd
}

func newVersesGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <id>",
		Short:         "Show a verse",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			s, err := openVerses(rootOpts, out)
			if err != nil {
				return err
			}
			defer s.Close()

			v, found, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return out.Fail("failed to read verse", err)
			}
			if !found {
				return out.Fail(fmt.Sprintf("verse %s not found", args[0]), store.NotFound("get", args[0]))
			}
			return out.Success(VerseView{v})
		},
	}
}

func newVersesListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored verses",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			s, err := openVerses(rootOpts, out)
			if err != nil {
				return err
			}
			defer s.Close()

			verses, err := s.GetAll(cmd.Context())
			if err != nil {
				return out.Fail("failed to list verses", err)
			}
			list := make(VerseList, len(verses))
			for i, v := range verses {
				list[i] = VerseView{v}
			}
			return out.Success(list)
		},
	}
}

func newVersesDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a verse",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			s, err := openVerses(rootOpts, out)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Delete(cmd.Context(), args[0]); err != nil {
				return out.Fail(fmt.Sprintf("failed to delete verse %s", args[0]), err)
			}
			return out.Success(fmt.Sprintf("deleted verse %s", args[0]))
		},
	}
}
