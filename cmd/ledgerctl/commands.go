package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/gabstv/httpdigest"
	"github.com/urfave/cli/v3"
	"ledgerly.dev/ledger/api"
	"ledgerly.dev/ledger/cmd/ledgerctl/internal/client"
	"ledgerly.dev/ledger/money"
)

var ErrMissingArgument = errors.New("missing argument")

var app = cli.Command{
	Name:  "ledgerctl",
	Usage: "Operate a ledgerd instance",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "url",
			Usage:   "Base URL of the daemon",
			Value:   "http://127.0.0.1:8080",
			Sources: cli.EnvVars("LEDGERCTL_URL"),
		},
		&cli.StringFlag{
			Name:    "username",
			Usage:   "Digest auth username, when the daemon sits behind an authenticating proxy",
			Sources: cli.EnvVars("LEDGERCTL_USERNAME"),
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "Digest auth password",
			Sources: cli.EnvVars("LEDGERCTL_PASSWORD"),
		},
		&cli.StringMapFlag{
			Name:  "header",
			Usage: "Extra header sent with every request",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print raw JSON instead of a table",
		},
	},
	Commands: []*cli.Command{
		{
			Name:  "health",
			Usage: "Check the daemon is up",
			Action: func(ctx context.Context, c *cli.Command) (err error) {
				err = newClient(c).Health(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.Root().Writer, "ok")
				return nil
			},
		},
		{
			Name:  "merchant",
			Usage: "Manage merchants",
			Commands: []*cli.Command{
				{
					Name:      "create",
					Usage:     "Register a merchant",
					ArgsUsage: "ID NAME",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "status", Usage: "ACTIVE or INACTIVE", Value: "ACTIVE"},
					},
					Action: func(ctx context.Context, c *cli.Command) (err error) {
						if c.Args().Len() < 2 {
							return fmt.Errorf("%w: ID NAME", ErrMissingArgument)
						}
						merchant, err := newClient(c).CreateMerchant(ctx, &api.CreateMerchant{
							Id:     c.Args().Get(0),
							Name:   strings.Join(c.Args().Slice()[1:], " "),
							Status: c.String("status"),
						})
						if err != nil {
							return err
						}
						return printMerchants(c, merchant)
					},
				},
				{
					Name:      "get",
					Usage:     "Show a merchant",
					ArgsUsage: "ID",
					Action: func(ctx context.Context, c *cli.Command) (err error) {
						id, err := firstArg(c, "ID")
						if err != nil {
							return err
						}
						merchant, err := newClient(c).Merchant(ctx, id)
						if err != nil {
							return err
						}
						return printMerchants(c, merchant)
					},
				},
				{
					Name:      "status",
					Usage:     "Activate or deactivate a merchant",
					ArgsUsage: "ID ACTIVE|INACTIVE",
					Action: func(ctx context.Context, c *cli.Command) (err error) {
						if c.Args().Len() < 2 {
							return fmt.Errorf("%w: ID STATUS", ErrMissingArgument)
						}
						merchant, err := newClient(c).UpdateMerchant(ctx, c.Args().Get(0), &api.UpdateMerchant{
							Status: c.Args().Get(1),
						})
						if err != nil {
							return err
						}
						return printMerchants(c, merchant)
					},
				},
			},
		},
		{
			Name:    "transaction",
			Aliases: []string{"tx"},
			Usage:   "Manage transactions",
			Commands: []*cli.Command{
				{
					Name:      "create",
					Usage:     "Record a pending transaction",
					ArgsUsage: "ID MERCHANT AMOUNT CURRENCY",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "expires-at", Usage: "RFC 3339 deadline, never expires when empty"},
						&cli.StringMapFlag{Name: "meta", Usage: "Metadata entry"},
					},
					Action: func(ctx context.Context, c *cli.Command) (err error) {
						if c.Args().Len() < 4 {
							return fmt.Errorf("%w: ID MERCHANT AMOUNT CURRENCY", ErrMissingArgument)
						}
						currency := c.Args().Get(3)
						amount, err := money.Parse(c.Args().Get(2), currency)
						if err != nil {
							return err
						}
						tx, err := newClient(c).CreateTransaction(ctx, &api.CreateTransaction{
							Id:         c.Args().Get(0),
							MerchantId: c.Args().Get(1),
							Amount:     &amount,
							Currency:   currency,
							ExpiresAt:  c.String("expires-at"),
							Metadata:   c.StringMap("meta"),
						})
						if err != nil {
							return err
						}
						return printTransactions(c, tx)
					},
				},
				{
					Name:      "get",
					Usage:     "Show a transaction",
					ArgsUsage: "ID",
					Action: func(ctx context.Context, c *cli.Command) (err error) {
						id, err := firstArg(c, "ID")
						if err != nil {
							return err
						}
						tx, err := newClient(c).Transaction(ctx, id)
						if err != nil {
							return err
						}
						return printTransactions(c, tx)
					},
				},
				{
					Name:  "list",
					Usage: "List transactions oldest first",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "merchant", Usage: "Only this merchant"},
						&cli.StringFlag{Name: "state", Usage: "PENDING, SUCCESS, FAILED or EXPIRED"},
					},
					Action: func(ctx context.Context, c *cli.Command) (err error) {
						txs, err := newClient(c).Transactions(ctx, c.String("merchant"), c.String("state"))
						if err != nil {
							return err
						}
						return printTransactions(c, txs...)
					},
				},
				{
					Name:      "outcome",
					Usage:     "Assert the final outcome reported by the provider",
					ArgsUsage: "ID SUCCESS|FAILED",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "reference", Usage: "Provider reference"},
						&cli.StringFlag{Name: "reported-at", Usage: "RFC 3339 time the provider reported, now when empty"},
						&cli.StringMapFlag{Name: "meta", Usage: "Metadata entry"},
					},
					Action: func(ctx context.Context, c *cli.Command) (err error) {
						if c.Args().Len() < 2 {
							return fmt.Errorf("%w: ID STATUS", ErrMissingArgument)
						}
						req := api.AssertOutcome{
							Status:     c.Args().Get(1),
							ReportedAt: c.String("reported-at"),
							Metadata:   c.StringMap("meta"),
						}
						if reference := c.String("reference"); reference != "" {
							req.ExternalReference = &reference
						}
						tx, err := newClient(c).AssertOutcome(ctx, c.Args().Get(0), &req)
						if err != nil {
							return err
						}
						return printTransactions(c, tx)
					},
				},
				{
					Name:  "expire",
					Usage: "Expire every overdue pending transaction now",
					Action: func(ctx context.Context, c *cli.Command) (err error) {
						expired, err := newClient(c).Expire(ctx)
						fmt.Fprintln(c.Root().Writer, "expired:", expired.Expired)
						return err
					},
				},
			},
		},
	},
}

func newClient(c *cli.Command) *client.Client {
	httpClient := &http.Client{}
	username := c.String("username")
	if username != "" {
		httpClient.Transport = httpdigest.New(username, c.String("password"))
	}
	return client.New(client.Config{
		Url:           c.String("url"),
		CustomHeaders: c.StringMap("header"),
		Client:        httpClient,
	})
}

func firstArg(c *cli.Command, name string) (arg string, err error) {
	arg = c.Args().First()
	if arg == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingArgument, name)
	}
	return arg, nil
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func printMerchants(c *cli.Command, merchants ...api.Merchant) error {
	w := c.Root().Writer
	if c.Bool("json") {
		if len(merchants) == 1 {
			return printJSON(w, merchants[0])
		}
		return printJSON(w, merchants)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tUPDATED")
	for _, m := range merchants {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Id, m.Name, m.Status, m.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func printTransactions(c *cli.Command, txs ...api.Transaction) error {
	w := c.Root().Writer
	if c.Bool("json") {
		if len(txs) == 1 {
			return printJSON(w, txs[0])
		}
		return printJSON(w, txs)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMERCHANT\tAMOUNT\tSTATE\tREFERENCE\tCREATED")
	for _, tx := range txs {
		reference := "-"
		if tx.Outcome != nil && tx.Outcome.ExternalReference != nil {
			reference = *tx.Outcome.ExternalReference
		}
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\t%s\t%s\n",
			tx.Id, tx.MerchantId, money.Format(tx.Amount, tx.Currency), tx.Currency,
			tx.State, reference, tx.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
