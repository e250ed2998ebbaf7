package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dinlipi/internal/client"
	"dinlipi/internal/config"
	"dinlipi/internal/localstate"
	"dinlipi/internal/logging"
	"dinlipi/internal/models"
	"dinlipi/internal/session"
)

// app holds what every command needs once the root pre-run has opened it.
type app struct {
	cfg    *config.Client
	state  *localstate.Store
	api    *client.Client
	sess   *session.Manager
	logger *zap.Logger
}

func (a *app) open(cmd *cobra.Command, apiURL string, verbose bool) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	a.cfg = cfg
	a.logger = logging.NewCLI(verbose)

	a.state, err = localstate.Open(cfg.StatePath())
	if err != nil {
		return fmt.Errorf("open local state: %w", err)
	}
	a.api = client.New(cfg.APIURL)
	a.sess = session.NewManager(a.api, a.state, a.logger)
	if err := a.sess.Restore(cmd.Context()); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if a.sess.Expired(time.Now()) {
		if err := a.sess.Refresh(cmd.Context()); err != nil {
			a.logger.Warn("session refresh failed", zap.Error(err))
		}
	}
	return nil
}

func (a *app) close() {
	if a.state != nil {
		_ = a.state.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) requireSession() error {
	if a.sess.State() != session.Authenticated {
		return fmt.Errorf("not signed in; run `dinlipi auth login` first")
	}
	return nil
}

// signedIn is the pre-run of command groups that need an account. Cobra runs
// only the nearest persistent pre-run, so it chains to the root's first.
func (a *app) signedIn(cmd *cobra.Command, args []string) error {
	if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
		return err
	}
	return a.requireSession()
}

func newRootCmd(a *app) *cobra.Command {
	var apiURL string
	var verbose bool

	root := &cobra.Command{
		Use:           "dinlipi",
		Short:         "Diary, mood and practice journal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd, apiURL, verbose)
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (default $DINLIPI_API_URL)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	root.AddCommand(
		authCmd(a),
		entryCmd(a),
		moodCmd(a),
		practiceCmd(a),
		profileCmd(a),
		settingsCmd(a),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// splitList parses a comma separated flag value, dropping blanks.
func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// localToday is the user's own calendar day.
func localToday() models.Date { return models.DateOf(time.Now()) }

func main() {
	a := &app{}
	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
