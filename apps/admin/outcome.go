package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (cli *commandLine) sectionStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "section-status SECTION_ID",
		Short: "Print the aggregated assessment status of a section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := cli.outcomeSvc.GetSectionAssessmentStatus(cmd.Context(), args[0])
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func (cli *commandLine) validateCourseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-course COURSE_ID",
		Short: "Check that every outcome of a course is ready for submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd, cli.outcomeSvc.ValidateCourseSubmission(cmd.Context(), args[0]))
		},
	}
}

func (cli *commandLine) submitCourseCmd() *cobra.Command {
	var email string
	var yes bool

	cmd := &cobra.Command{
		Use:   "submit-course COURSE_ID",
		Short: "Submit every outcome of a course on behalf of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			usr, err := cli.usrSvc.GetByEmail(ctx, email)
			if err != nil {
				return errors.Wrap(err, "finding submitter")
			}

			if !yes {
				ok, err := cli.confirm(cmd, fmt.Sprintf("Submit every outcome of course %s as %s?", args[0], usr.Email))
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("aborted")
				}
			}

			res, err := cli.outcomeSvc.SubmitCourse(ctx, usr.AuthContext(), args[0])
			if err != nil {
				return err
			}
			if err = printJSON(cmd, res); err != nil {
				return err
			}
			if !res.Success {
				return errors.New("course is not ready for submission")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "as", "", "email of the submitting user")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}
