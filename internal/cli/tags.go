package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/tags"
)

// TagsOptions holds flags for the tags command.
type TagsOptions struct {
	*RootOptions
	File    string
	Profile string
}

// TagTableResult is the JSON payload for a dumped tag table.
type TagTableResult struct {
	Source  string           `json:"source"`
	Entries []tags.Entry     `json:"entries"`
	Joins   []tags.JoinEntry `json:"joins"`
}

// NewTagsCommand creates the tags command.
func NewTagsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TagsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Validate and dump a planner tag table",
		Long: `Load a planner tag table and dump its entries.

Sources, checked in order: a PostgreSQL nodetags.h header (--file), a CUE
planner profile (--profile), or the builtin PostgreSQL table when neither
is given. Profile violations report stable error codes (E001 unreadable,
E002 parse failure, E003 schema violation, E004 duplicate value).

Exit codes:
  0 - Table loaded
  1 - Table failed to load or validate
  2 - Usage error

Examples:
  planalt tags
  planalt tags --file nodetags.h
  planalt tags --profile postgres16.cue --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTags(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.File, "file", "", "PostgreSQL nodetags.h header")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "CUE planner profile")

	return cmd
}

func runTags(opts *TagsOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	if opts.File != "" && opts.Profile != "" {
		return NewExitError(ExitUsageError, "--file and --profile are mutually exclusive")
	}

	var (
		table  *tags.Table
		source string
		err    error
	)
	switch {
	case opts.File != "":
		source = opts.File
		formatter.VerboseLog("Parsing node tags from %s", opts.File)
		table, err = tags.LoadHeader(opts.File)
	case opts.Profile != "":
		source = opts.Profile
		formatter.VerboseLog("Loading planner profile %s", opts.Profile)
		table, err = tags.LoadProfile(opts.Profile)
		if err == nil {
			if name, nerr := tags.ProfileName(opts.Profile); nerr == nil {
				source = name
			}
		}
	default:
		source = "builtin"
		table = tags.Builtin()
	}
	if err != nil {
		return outputTagsError(formatter, err)
	}

	result := TagTableResult{
		Source:  source,
		Entries: table.Entries(),
		Joins:   table.JoinEntries(),
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Tag table %s: %d entr(ies)\n", result.Source, len(result.Entries))
	for _, e := range result.Entries {
		fmt.Fprintf(w, "  %4d  %s\n", e.Value, e.Name)
	}
	if len(result.Joins) > 0 {
		fmt.Fprintf(w, "Join kinds: %d\n", len(result.Joins))
		for _, j := range result.Joins {
			fmt.Fprintf(w, "  %4d  %s\n", j.Value, j.Name)
		}
	}
	return nil
}

// outputTagsError reports a load failure with its stable code.
func outputTagsError(formatter *OutputFormatter, err error) error {
	var perr *tags.ProfileError
	if errors.As(err, &perr) {
		_ = formatter.Error(perr.Code, perr.Message, nil)
		return NewExitError(ExitFailure, perr.Error())
	}
	_ = formatter.Error(tags.ErrCodeUnreadable, err.Error(), nil)
	return WrapExitError(ExitFailure, "failed to load tag table", err)
}
