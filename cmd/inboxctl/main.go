// Package main implements inboxctl, the command-line client for the inbox
// sync backend.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/inbox-sync/internal/api"
	"github.com/capitalize-ai/inbox-sync/internal/config"
	"github.com/capitalize-ai/inbox-sync/pkg/logger"
)

// root holds the CLI-wide settings resolved from flags and environment.
type root struct {
	cfg    *config.Config
	logger *logger.Logger

	serverURL string
	pushURL   string
	token     string
	logLevel  string
}

func (r *root) apiClient() *api.Client {
	return api.New(r.serverURL, r.token, r.cfg.HTTPTimeout)
}

func newRootCmd() *cobra.Command {
	r := &root{cfg: config.Load()}

	cmd := &cobra.Command{
		Use:           "inboxctl",
		Short:         "Real-time conversation inbox client",
		Long:          "inboxctl keeps a live view of a conversation inbox: it follows pushed events over a websocket, lists and opens conversations, and sends replies.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(r.logLevel)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			logger.SetGlobal(log)
			r.logger = log
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&r.serverURL, "server", r.cfg.ServerURL, "HTTP API base URL")
	flags.StringVar(&r.pushURL, "push-url", r.cfg.PushURL, "websocket push endpoint")
	flags.StringVar(&r.token, "token", r.cfg.AuthToken, "bearer token")
	flags.StringVar(&r.logLevel, "log-level", r.cfg.LogLevel, "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newFollowCmd(r),
		newListCmd(r),
		newSendCmd(r),
		newCloseCmd(r),
		newCreateCmd(r),
		newContactsCmd(r),
		newTokenCmd(),
	)
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
