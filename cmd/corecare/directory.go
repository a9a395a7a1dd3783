package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hcunanan79/COREcare-access/internal/dto"
)

var (
	newUser   dto.CreateUserRequest
	newClient dto.CreateClientRequest
	newLink   dto.LinkFamilyRequest
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage login accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a login account",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, svc := newServices()
		user, err := svc.Directory.CreateUser(cmd.Context(), &newUser)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", user.Username, user.Role, user.ID)
		return nil
	},
}

func userActiveCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <username>",
		Short: use + " a login account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc := newServices()
			user, err := svc.Directory.SetUserActive(cmd.Context(), args[0], active)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s active=%t\n", user.Username, active)
			return nil
		},
	}
}

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Manage clients and family links",
}

var clientCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a client",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, svc := newServices()
		client, err := svc.Directory.CreateClient(cmd.Context(), &newClient)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created client %s id=%s\n", client.Name, client.ID)
		return nil
	},
}

var clientLinkCmd = &cobra.Command{
	Use:   "link-family",
	Short: "Link a family account to a client",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, svc := newServices()
		link, err := svc.Directory.LinkFamily(cmd.Context(), &newLink)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "linked user %s to client %s (can_view_schedule=%t, verified=%t)\n",
			link.UserID, link.ClientID, link.CanViewSchedule, link.Verified)
		return nil
	},
}

func init() {
	f := userCreateCmd.Flags()
	f.StringVar(&newUser.Username, "username", "", "login name")
	f.StringVar(&newUser.Password, "password", "", "initial password (min 8 characters)")
	f.StringVar(&newUser.Role, "role", "caregiver", "admin, staff, caregiver or family")
	f.StringVar(&newUser.FirstName, "first-name", "", "")
	f.StringVar(&newUser.LastName, "last-name", "", "")
	f.StringVar(&newUser.Email, "email", "", "")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("password")
	userCmd.AddCommand(userCreateCmd, userActiveCmd("activate", true), userActiveCmd("deactivate", false))

	f = clientCreateCmd.Flags()
	f.StringVar(&newClient.FirstName, "first-name", "", "")
	f.StringVar(&newClient.LastName, "last-name", "", "")
	f.StringVar(&newClient.DateOfBirth, "dob", "", "date of birth, YYYY-MM-DD")
	f.StringVar(&newClient.Street, "street", "", "")
	f.StringVar(&newClient.City, "city", "", "")
	f.StringVar(&newClient.State, "state", "", "")
	f.StringVar(&newClient.ZipCode, "zip", "", "")
	f.StringVar(&newClient.Diagnosis, "diagnosis", "", "")
	f.StringVar(&newClient.CarePlan, "care-plan", "", "")

	f = clientLinkCmd.Flags()
	f.StringVar(&newLink.ClientID, "client", "", "client id")
	f.StringVar(&newLink.Username, "username", "", "family account username")
	f.StringVar(&newLink.Relationship, "relationship", "", "e.g. Daughter")
	f.BoolVar(&newLink.CanViewSchedule, "can-view-schedule", true, "allow schedule access")
	f.BoolVar(&newLink.Verified, "verified", false, "mark the link as verified")
	_ = clientLinkCmd.MarkFlagRequired("client")
	_ = clientLinkCmd.MarkFlagRequired("username")
	clientCmd.AddCommand(clientCreateCmd, clientLinkCmd)

	rootCmd.AddCommand(userCmd, clientCmd)
}
