package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"dinlipi/internal/models"
)

func practiceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "practice",
		Short:             "Guided creative practices",
		PersistentPreRunE: a.signedIn,
	}

	var kind, title, content, media string

	add := &cobra.Command{
		Use:   "add",
		Short: "Start a practice",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := models.NewPractice{Type: models.PracticeType(kind), Title: title}
			if content != "" {
				in.Content = &content
			}
			if media != "" {
				in.MediaURL = &media
			}
			p, err := a.api.CreatePractice(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	add.Flags().StringVar(&kind, "type", "", "photo, drawing, writing, music or daily_creation (required)")
	add.Flags().StringVar(&title, "title", "", "Title (required)")
	add.Flags().StringVar(&content, "content", "", "Description")
	add.Flags().StringVar(&media, "media", "", "Media URL")

	list := &cobra.Command{
		Use:   "list",
		Short: "List practices",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *models.PracticeType
			if kind != "" {
				t := models.PracticeType(kind)
				filter = &t
			}
			out, err := a.api.Practices(cmd.Context(), filter)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tTITLE\tID")
			for _, p := range out {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.Type, p.Title, p.ID)
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&kind, "type", "", "Only this practice type")

	entries := &cobra.Command{
		Use:   "entries <practice-id>",
		Short: "Show the recorded days of a practice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid practice id: %w", err)
			}
			out, err := a.api.PracticeEntries(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	var day int
	logDay := &cobra.Command{
		Use:   "log <practice-id>",
		Short: "Record a day of a practice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid practice id: %w", err)
			}
			e, err := a.api.LogPracticeDay(cmd.Context(), models.NewPracticeEntry{PracticeID: id, DayNumber: day, Content: content})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), e)
		},
	}
	logDay.Flags().IntVar(&day, "day", 1, "Day number, starting at 1")
	logDay.Flags().StringVar(&content, "content", "", "What you made")

	complete := &cobra.Command{
		Use:   "complete <entry-id>",
		Short: "Mark a practice day done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid entry id: %w", err)
			}
			e, err := a.api.CompletePracticeEntry(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), e)
		},
	}

	del := &cobra.Command{
		Use:   "delete <practice-id>",
		Short: "Delete a practice that has no recorded days",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid practice id: %w", err)
			}
			return a.api.DeletePractice(cmd.Context(), id)
		},
	}

	cmd.AddCommand(add, list, entries, logDay, complete, del)
	return cmd
}
