package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBootstrapCommand(opts *rootOptions) *cobra.Command {
	var instanceCode, adminUser string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Prepare the store and exit",
		Long: `Ensures the home database instance exists, renaming SYSTEM_DEFAULT when an
instance code is configured, registers the built-in sample types and grants
the configured admin user the instance admin role. Running it twice is safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if instanceCode != "" {
				cfg.InstanceCode = instanceCode
			}
			if adminUser != "" {
				cfg.AdminUserID = adminUser
			}
			rt, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.close()
			report, err := rt.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "instance %s", report.Instance.Code)
			switch {
			case report.InstanceRenamed:
				fmt.Fprintf(out, " (renamed from %s)", report.PreviousCode)
			case report.InstanceCreated:
				fmt.Fprint(out, " (created)")
			}
			fmt.Fprintln(out)
			for _, code := range report.SampleTypes {
				fmt.Fprintf(out, "sample type %s registered\n", code)
			}
			if report.AdminCreated {
				fmt.Fprintf(out, "instance admin %s registered\n", cfg.AdminUserID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&instanceCode, "instance", "", "home database instance code")
	cmd.Flags().StringVar(&adminUser, "admin", "", "user id granted the instance admin role")
	return cmd
}
