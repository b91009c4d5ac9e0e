package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/buger/goterm"
	"github.com/nexidian/gocliselect"
	"github.com/spf13/cobra"

	"splitpay/internal/amqp"
	"splitpay/internal/cli"
	"splitpay/internal/config"
	"splitpay/internal/export"
	applog "splitpay/internal/log"
)

// appEnv is filled by the root command before any subcommand runs.
type appEnv struct {
	cfg    *config.Config
	logger *applog.Logger
	// pick asks the user to choose one of the members.
	pick func(prompt string, members []string, current string) (string, error)
}

// menuPick shows an arrow-key menu on the terminal.
func menuPick(prompt string, members []string, current string) (string, error) {
	menu := gocliselect.NewMenu(prompt)
	for _, m := range members {
		label := m
		if m == current {
			label += " (current)"
		}
		menu.AddItem(label, m)
	}
	choice, err := menu.Display()
	if err != nil {
		return "", err
	}
	name, _ := choice.(string)
	return name, nil
}

func (rt *appEnv) open(ctx context.Context, withIntegrations bool) (*cli.App, error) {
	return cli.NewApp(ctx, rt.cfg, rt.logger, withIntegrations)
}

func SetupCommands() *cobra.Command {
	return newCommands(&appEnv{pick: menuPick})
}

func newCommands(rt *appEnv) *cobra.Command {

	// root command
	rootCmd := &cobra.Command{
		Use:           "splitpay",
		Short:         "Split a shared subscription and track who paid",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cli.LoadEnvFile()
			cfg, err := cli.LoadAndValidateConfig()
			if err != nil {
				return err
			}
			rt.cfg = cfg
			rt.logger = cli.SetupLogger(cfg)
			return nil
		},
	}

	// command for printing the reminder text
	var send bool
	noticeCmd := &cobra.Command{
		Use:   "notice",
		Short: "Print the payment notice",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rt.open(cmd.Context(), send)
			if err != nil {
				return err
			}
			defer app.Close()

			if send {
				if err := app.Ledger.SendNotice(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Notice sent.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), app.Ledger.Notice(cmd.Context()))
			return nil
		},
	}
	noticeCmd.Flags().BoolVar(&send, "send", false, "post the notice to the configured Telegram chat")

	// command for listing every member's balance
	debtsCmd := &cobra.Command{
		Use:   "debts",
		Short: "Show what each member owes up to the current month",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rt.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			dash := app.Ledger.Dashboard(cmd.Context())
			if dash.ReadOnly {
				app.Logger.Warn("Stored state is unreadable; showing defaults", applog.FieldLoadStatus, dash.LoadStatus)
			}

			table := goterm.NewTable(0, 8, 2, ' ', 0)
			fmt.Fprintf(table, "%s\t%s\t%s\n", goterm.Bold("Member"), goterm.Bold("Status"), goterm.Bold("Debt"))
			for _, row := range dash.Table().Rows {
				status := row.Status
				if row.Contractor {
					status = "contractor"
				}
				fmt.Fprintf(table, "%s\t%s\t%s\n", row.Member, status, dash.FormatAmount(row.Debt))
			}
			fmt.Fprint(cmd.OutOrStdout(), table.String())
			fmt.Fprintf(cmd.OutOrStdout(), "\nPer head: %s (rate %.2f, %s)\n", dash.FormatAmount(dash.PerHead), dash.Rate, dash.Quote.Source)
			return nil
		},
	}

	// command for adding the next month slot
	advanceCmd := &cobra.Command{
		Use:   "advance",
		Short: "Add the month after the latest one to the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rt.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			month, err := app.Ledger.AddNextMonth(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s.\n", month)
			return nil
		},
	}

	// command for changing who fronts the payment
	contractorCmd := &cobra.Command{
		Use:   "contractor [name]",
		Short: "Set the member who pays the subscription",
		Args:  cobra.MaximumNArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			app, err := rt.open(cmd.Context(), false)
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
			defer app.Close()
			return app.Ledger.Dashboard(cmd.Context()).State.Members, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rt.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			var name string
			if len(args) > 0 {
				name = args[0]
			} else {
				st := app.Ledger.Dashboard(cmd.Context()).State
				name, err = rt.pick("Who pays the subscription?", st.Members, st.Contractor)
				if err != nil {
					return err
				}
				if name == "" {
					return errors.New("no contractor chosen")
				}
			}

			if err := app.Ledger.SetContractor(cmd.Context(), name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Contractor is now %s.\n", name)
			return nil
		},
	}

	// command for writing the payment table to an xlsx file
	var out string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the payment table to an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rt.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			dash := app.Ledger.Dashboard(cmd.Context())
			path := out
			if path == "" {
				path = "splitpay-" + string(dash.Current) + ".xlsx"
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := export.WriteXLSX(f, dash.Summary); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s.\n", path)
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&out, "out", "o", "", "output file (default splitpay-<month>.xlsx)")

	// command for applying the spreadsheet copy of the table
	sheetPullCmd := &cobra.Command{
		Use:   "sheet-pull",
		Short: "Replace the ledger with the payment table from Google Sheets",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rt.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			changed, err := app.Ledger.PullSheet(cmd.Context())
			if err != nil {
				return err
			}
			if changed {
				fmt.Fprintln(cmd.OutOrStdout(), "Ledger updated from the spreadsheet.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Ledger already matches the spreadsheet.")
			}
			return nil
		},
	}

	// command for following ledger-change events
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Follow ledger-change events from AMQP until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is not set")
			}
			client, err := amqp.NewClient(rt.cfg.AMQPURL, rt.cfg.AMQPExchange, rt.cfg.AMQPQueue)
			if err != nil {
				return err
			}
			defer client.Close()

			logger := rt.logger.WithComponent(applog.ComponentAMQP)
			logger.Info("Following ledger events", "exchange", rt.cfg.AMQPExchange, "queue", rt.cfg.AMQPQueue)
			err = client.ConsumeLedgerEvents(cmd.Context(), func(ev *amqp.LedgerEvent) error {
				fmt.Fprintln(cmd.OutOrStdout(), formatEvent(ev))
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	// add commands
	rootCmd.AddCommand(serveCommand(rt))
	rootCmd.AddCommand(noticeCmd)
	rootCmd.AddCommand(debtsCmd)
	rootCmd.AddCommand(advanceCmd)
	rootCmd.AddCommand(contractorCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(sheetPullCmd)
	rootCmd.AddCommand(eventsCmd)

	return rootCmd
}

// formatEvent renders one event as a single line.
func formatEvent(ev *amqp.LedgerEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s month=%s per_head=%d", ev.Timestamp.Format("2006-01-02 15:04:05"), ev.Action, ev.Month, ev.PerHead)
	if ev.Member != "" {
		fmt.Fprintf(&b, " member=%s", ev.Member)
	}
	return b.String()
}
