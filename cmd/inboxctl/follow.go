package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/inbox-sync/internal/engine"
	"github.com/capitalize-ai/inbox-sync/internal/model"
	"github.com/capitalize-ai/inbox-sync/internal/transport"
)

func newFollowCmd(r *root) *cobra.Command {
	var (
		openID   string
		showSent bool
	)

	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Follow the inbox in real time",
		Long: strings.TrimSpace(`
Connects to the push endpoint and prints inbox activity as it happens:
new conversations, incoming and outgoing messages, closes, and connection
state changes. The conversation list is loaded over HTTP on start and kept
in sync from pushed events afterwards.
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runFollow(ctx, r, openID, showSent)
		},
	}

	cmd.Flags().StringVar(&openID, "open", "", "activate this conversation and print its history")
	cmd.Flags().BoolVar(&showSent, "show-sent", true, "print outgoing messages too")
	return cmd
}

func runFollow(ctx context.Context, r *root, openID string, showSent bool) error {
	tr, err := transport.New(transport.Options{
		URL:               r.pushURL,
		Token:             r.token,
		ReconnectDelay:    r.cfg.ReconnectDelay,
		MaxReconnectDelay: r.cfg.ReconnectMaxDelay,
	}, r.logger.Named("transport"))
	if err != nil {
		return fmt.Errorf("invalid push URL: %w", err)
	}

	eng := engine.New(r.apiClient(), tr, tr.Events(), r.logger.Named("engine"))

	go tr.Run(ctx)
	go eng.Run(ctx)

	connected, cancelConnected := tr.Connected().Subscribe()
	defer cancelConnected()
	notifications, cancelNotifications := eng.Notifications().Subscribe()
	defer cancelNotifications()
	conversations, cancelConversations := eng.Conversations().Subscribe()
	defer cancelConversations()
	active, cancelActive := eng.Active().Subscribe()
	defer cancelActive()

	eng.LoadConversations()
	if openID != "" {
		eng.OpenConversation(openID)
	}

	printer := newFollowPrinter(os.Stdout, showSent)
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case up := <-connected:
			printer.connection(up)
		case n := <-notifications:
			printer.notification(n)
		case list := <-conversations:
			printer.inbox(list)
		case conv := <-active:
			printer.active(conv)
		}
	}
}

// followPrinter renders inbox activity as terminal lines, diffing against
// the previously printed state so only changes are shown.
type followPrinter struct {
	out      *os.File
	showSent bool

	seenMessages map[string]struct{}
	lastStatus   map[string]model.ConversationStatus
	known        map[string]struct{}
	printedList  bool
	activeID     string
}

func newFollowPrinter(out *os.File, showSent bool) *followPrinter {
	return &followPrinter{
		out:          out,
		showSent:     showSent,
		seenMessages: make(map[string]struct{}),
		lastStatus:   make(map[string]model.ConversationStatus),
		known:        make(map[string]struct{}),
	}
}

func (p *followPrinter) connection(up bool) {
	if up {
		fmt.Fprintln(p.out, "* connected")
	} else {
		fmt.Fprintln(p.out, "* disconnected, reconnecting...")
	}
}

func (p *followPrinter) notification(n engine.Notification) {
	fmt.Fprintf(p.out, "! %s: %s\n", n.Level, n.Message)
}

func (p *followPrinter) inbox(list []model.Conversation) {
	if !p.printedList {
		fmt.Fprintf(p.out, "* following %d conversations\n", len(list))
		p.printedList = true
		for _, c := range list {
			p.known[c.ID] = struct{}{}
			p.lastStatus[c.ID] = c.Status
			if c.LastMessage != nil {
				p.seenMessages[c.LastMessage.ID] = struct{}{}
			}
		}
		return
	}

	for i := range list {
		c := &list[i]
		if _, ok := p.known[c.ID]; !ok {
			p.known[c.ID] = struct{}{}
			p.lastStatus[c.ID] = c.Status
			fmt.Fprintf(p.out, "+ conversation %s opened by %s\n", shortID(c.ID), contactName(c))
		}
		if prev, ok := p.lastStatus[c.ID]; ok && prev != c.Status && c.IsClosed() {
			fmt.Fprintf(p.out, "- conversation %s closed\n", shortID(c.ID))
		}
		p.lastStatus[c.ID] = c.Status

		if c.LastMessage != nil {
			p.message(c, c.LastMessage)
		}
	}
}

func (p *followPrinter) message(c *model.Conversation, m *model.Message) {
	if _, seen := p.seenMessages[m.ID]; seen {
		return
	}
	p.seenMessages[m.ID] = struct{}{}

	if m.Direction == model.DirectionSent && !p.showSent {
		return
	}
	marker := "<"
	if m.Direction == model.DirectionSent {
		marker = ">"
	}
	unread := ""
	if c.UnreadCount > 0 {
		unread = fmt.Sprintf(" (%d unread)", c.UnreadCount)
	}
	fmt.Fprintf(p.out, "%s [%s]%s %s\n", marker, shortID(c.ID), unread, m.Content)
}

func (p *followPrinter) active(conv *model.Conversation) {
	if conv == nil || conv.ID == p.activeID {
		return
	}
	if len(conv.Messages) == 0 {
		return
	}
	p.activeID = conv.ID

	fmt.Fprintf(p.out, "* conversation %s (%s, %d messages)\n",
		shortID(conv.ID), strings.ToLower(string(conv.Status)), conv.MessageCount)
	for i := range conv.Messages {
		m := &conv.Messages[i]
		p.seenMessages[m.ID] = struct{}{}
		marker := "<"
		if m.Direction == model.DirectionSent {
			marker = ">"
		}
		fmt.Fprintf(p.out, "  %s %s\n", marker, m.Content)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func contactName(c *model.Conversation) string {
	if c.Contact != nil && c.Contact.Name != "" {
		return c.Contact.Name
	}
	return "unknown contact"
}
