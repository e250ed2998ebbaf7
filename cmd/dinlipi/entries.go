package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"dinlipi/internal/client"
	"dinlipi/internal/models"
)

func entryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "entry",
		Short:             "Write and browse diary entries",
		PersistentPreRunE: a.signedIn,
	}

	var title, content, date, mood, photo, tags string

	add := &cobra.Command{
		Use:   "add",
		Short: "Write an entry (defaults to today)",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := models.NewEntry{Title: title, Content: content, Date: localToday()}
			if date != "" {
				d, err := models.ParseDate(date)
				if err != nil {
					return err
				}
				in.Date = d
			}
			if mood != "" {
				id, err := uuid.Parse(mood)
				if err != nil {
					return fmt.Errorf("invalid mood id: %w", err)
				}
				in.MoodID = &id
			}
			if photo != "" {
				in.PhotoURL = &photo
			}
			e, err := a.api.CreateEntry(cmd.Context(), in, splitList(tags))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), e)
		},
	}
	add.Flags().StringVar(&title, "title", "", "Title (required)")
	add.Flags().StringVar(&content, "content", "", "Entry text (required)")
	add.Flags().StringVar(&date, "date", "", "Day as YYYY-MM-DD")
	add.Flags().StringVar(&mood, "mood", "", "Mood id from `dinlipi mood catalog`")
	add.Flags().StringVar(&photo, "photo", "", "Photo URL")
	add.Flags().StringVar(&tags, "tags", "", "Comma separated tags")

	var year, month, limit, offset int
	var query string
	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := models.ListFilter{Year: year, Month: time.Month(month), Query: query}
			var entries []models.EntryView
			if all {
				feed := client.NewEntryFeed(a.api, 50)
				feed.SetFilter(f)
				for !feed.Done() {
					page, err := feed.Next(cmd.Context())
					if err != nil {
						return err
					}
					entries = append(entries, page...)
				}
			} else {
				f.Limit, f.Offset = limit, offset
				var err error
				if entries, err = a.api.ListEntries(cmd.Context(), f); err != nil {
					return err
				}
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tTITLE\tMOOD\tTAGS\tID")
			for _, e := range entries {
				moodName := ""
				if e.Mood != nil {
					moodName = e.Mood.Emoji + " " + e.Mood.Name
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Date, e.Title, moodName, strings.Join(e.Tags, ","), e.ID)
			}
			return w.Flush()
		},
	}
	list.Flags().IntVar(&year, "year", 0, "Year (with --month)")
	list.Flags().IntVar(&month, "month", 0, "Month 1-12 (with --year)")
	list.Flags().IntVar(&limit, "limit", 20, "Page size")
	list.Flags().IntVar(&offset, "offset", 0, "Entries to skip")
	list.Flags().StringVarP(&query, "query", "q", "", "Search titles and tags")
	list.Flags().BoolVar(&all, "all", false, "Fetch every page")

	show := &cobra.Command{
		Use:   "show <id|YYYY-MM-DD>",
		Short: "Show one entry by id or by day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var e *models.EntryView
			var err error
			if id, perr := uuid.Parse(args[0]); perr == nil {
				e, err = a.api.GetEntry(cmd.Context(), id)
			} else {
				d, derr := models.ParseDate(args[0])
				if derr != nil {
					return errors.New("argument must be an entry id or a YYYY-MM-DD day")
				}
				e, err = a.api.GetEntryByDate(cmd.Context(), d)
			}
			if err != nil {
				return err
			}
			if e == nil {
				return fmt.Errorf("no entry for %s", args[0])
			}
			return printJSON(cmd.OutOrStdout(), e)
		},
	}

	var clearMood bool
	edit := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid entry id: %w", err)
			}
			var p client.EntryPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				p.Title = &title
			}
			if flags.Changed("content") {
				p.Content = &content
			}
			if flags.Changed("date") {
				d, err := models.ParseDate(date)
				if err != nil {
					return err
				}
				p.Date = &d
			}
			if clearMood {
				nilID := uuid.Nil
				p.MoodID = &nilID
			} else if flags.Changed("mood") {
				m, err := uuid.Parse(mood)
				if err != nil {
					return fmt.Errorf("invalid mood id: %w", err)
				}
				p.MoodID = &m
			}
			if flags.Changed("photo") {
				p.PhotoURL = &photo
			}
			if flags.Changed("tags") {
				t := splitList(tags)
				p.Tags = &t
			}
			e, err := a.api.UpdateEntry(cmd.Context(), id, p)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), e)
		},
	}
	edit.Flags().StringVar(&title, "title", "", "New title")
	edit.Flags().StringVar(&content, "content", "", "New text")
	edit.Flags().StringVar(&date, "date", "", "New day as YYYY-MM-DD")
	edit.Flags().StringVar(&mood, "mood", "", "New mood id")
	edit.Flags().BoolVar(&clearMood, "clear-mood", false, "Remove the mood")
	edit.Flags().StringVar(&photo, "photo", "", "New photo URL; empty removes it")
	edit.Flags().StringVar(&tags, "tags", "", "Replace all tags; empty removes them")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid entry id: %w", err)
			}
			return a.api.DeleteEntry(cmd.Context(), id)
		},
	}

	tagsCmd := &cobra.Command{
		Use:   "tags",
		Short: "List your tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.api.Tags(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range out {
				fmt.Fprintln(cmd.OutOrStdout(), t.Name)
			}
			return nil
		},
	}

	calendar := &cobra.Command{
		Use:   "calendar",
		Short: "Days of a month that have entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			today := localToday()
			y, m := year, time.Month(month)
			if y == 0 {
				y = today.Year()
			}
			if m == 0 {
				m = today.Month()
			}
			dates, err := a.api.Calendar(cmd.Context(), y, m)
			if err != nil {
				return err
			}
			for _, d := range dates {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}
	calendar.Flags().IntVar(&year, "year", 0, "Year (default current)")
	calendar.Flags().IntVar(&month, "month", 0, "Month (default current)")

	cmd.AddCommand(add, list, show, edit, del, tagsCmd, calendar)
	return cmd
}
