package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/inbox-sync/internal/model"
)

func newContactsCmd(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Manage contacts",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			contacts, err := r.apiClient().ListContacts(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range contacts {
				fmt.Printf("%-8s  %-24s  %-18s  %s\n", shortID(c.ID), c.Name, c.Phone, c.Email)
			}
			return nil
		},
	}

	var (
		phone string
		email string
	)
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contact, err := r.apiClient().CreateContact(cmd.Context(), &model.ContactRequest{
				Name:  args[0],
				Phone: phone,
				Email: email,
			})
			if err != nil {
				return err
			}
			fmt.Printf("contact %s created\n", contact.ID)
			return nil
		},
	}
	create.Flags().StringVar(&phone, "phone", "", "phone number")
	create.Flags().StringVar(&email, "email", "", "email address")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contact, err := r.apiClient().GetContact(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("id:    %s\nname:  %s\nphone: %s\nemail: %s\n",
				contact.ID, contact.Name, contact.Phone, contact.Email)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := r.apiClient().DeleteContact(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("deleted")
			return nil
		},
	}

	cmd.AddCommand(list, create, show, remove)
	return cmd
}
