package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/clotrack/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var nu user.NewUser
	var isAdmin bool

	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user. The password is prompted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := cli.promptPassword(cmd, "Enter password:")
			if err != nil {
				return err
			}
			if pwd == "" {
				_ = cmd.Usage()
				return errHelp
			}
			nu.Password, nu.PasswordConfirm = pwd, pwd
			if isAdmin {
				nu.Roles = append(nu.Roles, user.RoleAdmin)
			}

			usr, err := cli.usrSvc.Create(cmd.Context(), nu)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", usr.Email, usr.ID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&nu.Name, "name", "", "full name")
	flags.StringVar(&nu.Email, "email", "", "email address, used to log in")
	flags.StringVar(&nu.InstitutionID, "institution", "", "institution ID")
	flags.StringSliceVar(&nu.Roles, "role", nil, "role to grant, repeatable (admin:, admin:program, teacher:)")
	flags.StringSliceVar(&nu.ProgramIDs, "program", nil, "program ID administered, repeatable")
	flags.BoolVar(&isAdmin, "admin", false, "grant the institution admin role")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("institution")
	return cmd
}
