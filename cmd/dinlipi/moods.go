package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dinlipi/internal/models"
)

func moodCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "mood", Short: "Log daily moods and see trends"}

	catalog := &cobra.Command{
		Use:   "catalog",
		Short: "List the moods entries can be tagged with",
		RunE: func(cmd *cobra.Command, args []string) error {
			moods, err := a.api.MoodCatalog(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, m := range moods {
				fmt.Fprintf(w, "%s\t%s\t%s\n", m.Emoji, m.Name, m.ID)
			}
			return w.Flush()
		},
	}

	var rating int
	var emotions, notes, date string
	log := &cobra.Command{
		Use:               "log",
		Short:             "Record how today went (rating 1-5)",
		PersistentPreRunE: a.signedIn,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := models.NewMoodEntry{Date: localToday(), MoodRating: rating, Emotions: splitList(emotions)}
			if date != "" {
				d, err := models.ParseDate(date)
				if err != nil {
					return err
				}
				in.Date = d
			}
			if notes != "" {
				in.Notes = &notes
			}
			m, err := a.api.LogMood(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}
	log.Flags().IntVarP(&rating, "rating", "r", 0, "Mood rating 1-5 (required)")
	log.Flags().StringVar(&emotions, "emotions", "", "Comma separated emotions")
	log.Flags().StringVar(&notes, "notes", "", "Private notes")
	log.Flags().StringVar(&date, "date", "", "Day as YYYY-MM-DD (default today)")

	var from, to string
	list := &cobra.Command{
		Use:               "list",
		Short:             "List logged moods",
		PersistentPreRunE: a.signedIn,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := optionalDay(from)
			if err != nil {
				return err
			}
			end, err := optionalDay(to)
			if err != nil {
				return err
			}
			entries, err := a.api.MoodEntries(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
	list.Flags().StringVar(&from, "from", "", "First day, inclusive")
	list.Flags().StringVar(&to, "to", "", "Last day, inclusive")

	summary := &cobra.Command{
		Use:               "summary",
		Short:             "Streak, averages and the last seven days",
		PersistentPreRunE: a.signedIn,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := localToday()
			if date != "" {
				d, err := models.ParseDate(date)
				if err != nil {
					return err
				}
				ref = d
			}
			s, err := a.api.MoodSummary(cmd.Context(), ref)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		},
	}
	summary.Flags().StringVar(&date, "date", "", "Treat this day as today")

	cmd.AddCommand(catalog, log, list, summary)
	return cmd
}

func optionalDay(s string) (*models.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
