package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/inbox-sync/internal/model"
	"github.com/capitalize-ai/inbox-sync/internal/transport"
)

func newListCmd(r *root) *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := r.apiClient().ListConversations(cmd.Context(), page)
			if err != nil {
				return err
			}

			for _, c := range resp.Results {
				last := ""
				if c.LastMessage != nil {
					last = c.LastMessage.Content
					if len(last) > 48 {
						last = last[:45] + "..."
					}
				}
				fmt.Printf("%-8s  %-6s  %3d msgs  %4s  %-20s  %s\n",
					shortID(c.ID),
					strings.ToLower(string(c.Status)),
					c.MessageCount,
					formatAge(c.UpdatedAt),
					contactName(&c),
					last,
				)
			}
			fmt.Printf("page %d, %d total", page, resp.Count)
			if resp.Next != nil {
				fmt.Printf(" (more: --page %d)", page+1)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func newSendCmd(r *root) *cobra.Command {
	var (
		internal bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send <conversation-id> <text>...",
		Short: "Send a message over the push connection",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conversationID := args[0]
			content := strings.Join(args[1:], " ")
			if strings.TrimSpace(content) == "" {
				return nil
			}

			tr, err := transport.New(transport.Options{
				URL:   r.pushURL,
				Token: r.token,
			}, r.logger.Named("transport"))
			if err != nil {
				return fmt.Errorf("invalid push URL: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			go tr.Run(ctx)

			connected, cancelSub := tr.Connected().Subscribe()
			defer cancelSub()
			for {
				select {
				case <-ctx.Done():
					return fmt.Errorf("could not connect within %v", timeout)
				case up := <-connected:
					if !up {
						continue
					}
					if err := tr.Send(model.SendMessageCommand{
						Type:           model.CommandSendMessage,
						ConversationID: conversationID,
						Content:        strings.TrimSpace(content),
						IsInternal:     internal,
					}); err != nil {
						return err
					}
					fmt.Println("sent")
					return nil
				}
			}
		},
	}

	cmd.Flags().BoolVar(&internal, "internal", false, "mark the message as an internal note")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "connect timeout")
	return cmd
}

func newCloseCmd(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "close <conversation-id>",
		Short: "Close a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := r.apiClient().CloseConversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("conversation %s closed at %s\n", shortID(conv.ID), conv.ClosedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newCreateCmd(r *root) *cobra.Command {
	var contactID string

	cmd := &cobra.Command{
		Use:   "create <text>...",
		Short: "Create a conversation with an initial message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := r.apiClient().CreateConversation(cmd.Context(), &model.CreateConversationRequest{
				Content:   strings.Join(args, " "),
				ContactID: contactID,
			})
			if err != nil {
				return err
			}
			fmt.Printf("conversation %s created\n", conv.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&contactID, "contact", "", "link the conversation to a contact id")
	return cmd
}
