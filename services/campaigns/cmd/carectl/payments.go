package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/communitycare/carefund/services/campaigns/internal/campaign"
	"github.com/communitycare/carefund/services/campaigns/internal/database"
	"github.com/communitycare/carefund/services/campaigns/internal/payment"
	"github.com/communitycare/carefund/services/campaigns/internal/upi"
)

func (c *cli) donationsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "donations [campaign-id]",
		Short: "List recorded donations, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return c.withService(cmd.Context(), func(s *campaign.Service) error {
				list, err := s.Donations(cmd.Context(), id, limit)
				if err != nil {
					return err
				}
				return c.print(cmd.OutOrStdout(), list, func(tw *tabwriter.Writer) {
					fmt.Fprintln(tw, "ID\tCAMPAIGN\tAMOUNT\tMETHOD\tREF\tCREATED")
					for _, d := range list {
						campaignID := d.CampaignID
						if campaignID == "" {
							campaignID = "(general)"
						}
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
							d.ID, campaignID, upi.FormatAmount(d.Amount), d.Method, d.PaymentRef,
							d.CreatedAt.Format("2006-01-02 15:04"))
					}
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to print (0 for all)")
	return cmd
}

func (c *cli) orderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order <order-id>",
		Short: "Show a card payment order and whether it was paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(db store) error {
				o, err := db.GetPaymentOrder(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if o == nil {
					return fmt.Errorf("order %s: %w", args[0], database.ErrOrderNotFound)
				}
				return c.print(cmd.OutOrStdout(), o, func(tw *tabwriter.Writer) {
					fmt.Fprintf(tw, "Order\t%s\n", o.ID)
					fmt.Fprintf(tw, "Status\t%s\n", o.Status)
					fmt.Fprintf(tw, "Amount\tRs %s %s\n", upi.FormatAmount(o.Amount), o.Currency)
					if o.CampaignID != "" {
						fmt.Fprintf(tw, "Campaign\t%s\n", o.CampaignID)
					}
					if o.PaymentID != "" {
						fmt.Fprintf(tw, "Payment\t%s\n", o.PaymentID)
					}
					fmt.Fprintf(tw, "Created\t%s\n", o.CreatedAt.Format("2006-01-02 15:04"))
				})
			})
		},
	}
}

// payCmd runs a card checkout against a running server. The gateway's
// payment id and signature are entered by hand, e.g. for a donation taken
// over the phone.
func (c *cli) payCmd() *cobra.Command {
	var (
		server string
		amount string
		req    payment.CheckoutRequest
	)
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Take a card donation through the payment gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amt, err := decimal.NewFromString(strings.TrimSpace(amount))
			if err != nil {
				return fmt.Errorf("invalid amount %q", amount)
			}
			req.Amount = amt

			checkout := payment.NewHTTPCheckout(server)
			widget := terminalWidget{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout()}
			res := payment.NewAdapter(payment.NewOnceLoader(checkout.Ready), checkout, widget, "CareFund").Pay(cmd.Context(), req)

			fmt.Fprintln(cmd.OutOrStdout(), res.Outcome.Message())
			if res.Err != nil {
				return fmt.Errorf("%s: %w", res.Outcome, res.Err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", c.cfg.Server.BaseURL, "base URL of the campaigns server")
	cmd.Flags().StringVar(&amount, "amount", "", "donation in rupees")
	cmd.Flags().StringVar(&req.CampaignID, "campaign", "", "campaign id (empty for the general fund)")
	cmd.Flags().StringVar(&req.DonorName, "name", "", "donor name")
	cmd.Flags().StringVar(&req.DonorEmail, "email", "", "donor email")
	cmd.MarkFlagRequired("amount")
	return cmd
}

// terminalWidget shows the order and reads the gateway's success fields
// from the operator. A blank line or EOF dismisses the checkout.
type terminalWidget struct {
	in  *bufio.Reader
	out io.Writer
}

func (w terminalWidget) Open(_ context.Context, opts payment.WidgetOptions) (*payment.VerifyRequest, error) {
	fmt.Fprintf(w.out, "%s %s: Rs %s (%s)\n", opts.Name, opts.Description,
		upi.FormatAmount(database.FromPaise(opts.Order.Amount)), opts.Order.Currency)
	fmt.Fprintf(w.out, "Order %s, key %s\n", opts.Order.OrderID, opts.Order.KeyID)
	fmt.Fprint(w.out, "Payment id and signature (blank to cancel): ")

	line, err := w.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read payment: %w", err)
	}
	fields := strings.Fields(line)
	switch len(fields) {
	case 0:
		return nil, payment.ErrDismissed
	case 2:
		return &payment.VerifyRequest{OrderID: opts.Order.OrderID, PaymentID: fields[0], Signature: fields[1]}, nil
	}
	return nil, fmt.Errorf("expected payment id and signature, got %q", strings.TrimSpace(line))
}

var _ payment.Widget = terminalWidget{}
