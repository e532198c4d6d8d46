package main

import (
	"errors"
	"fmt"

	pimalink "github.com/caarlos0/homekit-pimalink"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
)

func newRootCmd() *cobra.Command {
	var a *app
	root := &cobra.Command{
		Use:           "homekit-pimalink",
		Short:         "Homekit bridge for PIMA alarm systems",
		Long:          "Exposes every panel paired to this installation as a HomeKit security system.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			var err error
			a, err = setup()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), a)
		},
	}
	getApp := func() *app { return a }
	root.AddCommand(
		newRegisterCmd(getApp),
		newContactCmd(getApp),
		newPairCmd(getApp),
		newListCmd(getApp),
		newDeleteCmd(getApp),
	)
	return root
}

func newRegisterCmd(getApp func() *app) *cobra.Command {
	var details pimalink.ContactDetails
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Registers the contact details of this installation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := getApp()
			if err := pimalink.RegisterContactDetails(cmd.Context(), a.cli, a.settings, details, a.cfg.lang()); err != nil {
				return err
			}
			log.Info("registered", "webUserID", a.cli.WebUserID(), "email", details.Email, "phone", details.Phone)
			return nil
		},
	}
	cmd.Flags().StringVar(&details.Email, "email", "", "contact email")
	cmd.Flags().StringVar(&details.Phone, "phone", "", "contact phone number")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newContactCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "contact",
		Short: "Shows the registered contact details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			details := pimalink.StoredContactDetails(getApp().settings)
			fmt.Fprintf(cmd.OutOrStdout(), "email: %s\nphone: %s\n", details.Email, details.Phone)
			return nil
		},
	}
}

func newPairCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pair NAME PAIRING_CODE",
		Short: "Pairs a panel using the code shown on its keypad",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := getApp().cli.Pair(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			log.Info("paired, restart the bridge to expose it", "name", args[0])
			return nil
		},
	}
}

func newListCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lists the paired panels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := getApp()
			entities, err := a.cli.PairEntities(cmd.Context())
			if errors.Is(err, pimalink.ErrNoPairEntities) {
				fmt.Fprintln(cmd.OutOrStdout(), "no panels paired yet, pair one first with: homekit-pimalink pair NAME PAIRING_CODE")
				return nil
			}
			if err != nil {
				return err
			}
			hidden := a.settings.Hidden()
			for _, e := range entities {
				line := e.PairID + "\t" + e.Name
				if slices.Contains(hidden, e.PairID) {
					line += "\t(deleted)"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func newDeleteCmd(getApp func() *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "delete PAIR_ID",
		Short: "Removes a panel from the bridge",
		Long: "Removes a panel from the bridge. If --name is \"" + pimalink.UnpairName + "\", " +
			"the panel is also unpaired from this installation.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deletePanel(cmd, getApp(), args[0], name)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name of the deleted device")
	return cmd
}

func deletePanel(cmd *cobra.Command, a *app, pairID, name string) error {
	unpaired, err := pimalink.DeleteDevice(cmd.Context(), a.cli, pairID, name)
	if unpaired {
		// a panel paired again later shows up on the bridge again.
		if err := a.settings.Unhide(pairID); err != nil {
			return err
		}
	} else if err := a.settings.Hide(pairID); err != nil {
		return err
	}
	if err != nil {
		return fmt.Errorf("could not unpair %s: %w", pairID, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (unpaired: %t)\n", pairID, unpaired)
	return nil
}
