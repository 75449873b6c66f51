package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/douban-harvester/internal/douban"
	"github.com/JakeFAU/douban-harvester/internal/douban/model"
)

// lookupFunc runs one lookup and returns what to print.
type lookupFunc func(ctx context.Context, c *douban.Client, arg string) (any, error)

func newLookupCmds() []*cobra.Command {
	var category string
	search := newLookupCmd("search <keyword>", "Search movies and TV series",
		func(ctx context.Context, c *douban.Client, kw string) (any, error) {
			switch model.Category(category) {
			case "":
				return c.Search(ctx, kw)
			case model.CategoryMovie:
				return c.SearchMovies(ctx, kw)
			case model.CategoryTV:
				return c.SearchTV(ctx, kw)
			default:
				return nil, fmt.Errorf("unknown category %q", category)
			}
		})
	search.Flags().StringVar(&category, "category", "", "restrict to movie or tv")

	return []*cobra.Command{
		search,
		newLookupCmd("suggest <keyword>", "Query the quick-suggest endpoint",
			func(ctx context.Context, c *douban.Client, kw string) (any, error) {
				return c.Suggest(ctx, kw)
			}),
		newLookupCmd("subject <id>", "Show a movie or TV subject",
			func(ctx context.Context, c *douban.Client, id string) (any, error) {
				return orNotFound(c.GetSubject(ctx, id))
			}),
		newLookupCmd("celebrities <subject-id>", "List a subject's directors and actors",
			func(ctx context.Context, c *douban.Client, id string) (any, error) {
				return c.GetCelebrities(ctx, id)
			}),
		newLookupCmd("celebrity <id>", "Show a celebrity profile",
			func(ctx context.Context, c *douban.Client, id string) (any, error) {
				return orNotFound(c.GetCelebrity(ctx, id))
			}),
		newLookupCmd("celebrity-photos <id>", "List a celebrity's photos",
			func(ctx context.Context, c *douban.Client, id string) (any, error) {
				return c.GetCelebrityPhotos(ctx, id)
			}),
		newLookupCmd("subject-photos <id>", "List a subject's wallpapers",
			func(ctx context.Context, c *douban.Client, id string) (any, error) {
				return c.GetSubjectPhotos(ctx, id)
			}),
		newLookupCmd("search-celebrities <keyword>", "Search celebrities",
			func(ctx context.Context, c *douban.Client, kw string) (any, error) {
				return c.SearchCelebrities(ctx, kw)
			}),
		newLoginCmd(),
	}
}

func newLookupCmd(use, short string, run lookupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd, func(ctx context.Context, c *douban.Client) (any, error) {
				return run(ctx, c, args[0])
			})
		},
	}
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check whether the configured cookie is logged in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLookup(cmd, func(ctx context.Context, c *douban.Client) (any, error) {
				return c.GetLoginInfo(ctx), nil
			})
		},
	}
}

func runLookup(cmd *cobra.Command, run func(context.Context, *douban.Client) (any, error)) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, lookupTimeout)
		defer cancel()
	}
	result, err := run(ctx, appInstance.Client())
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	return printJSON(cmd.OutOrStdout(), result)
}

// orNotFound turns an absent record into JSON null.
func orNotFound[T any](v T, found bool, err error) (any, error) {
	if err != nil || !found {
		return nil, err
	}
	return v, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
