package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/communitycare/carefund/internal/receipts"
	"github.com/communitycare/carefund/services/campaigns/config"
	"github.com/communitycare/carefund/services/campaigns/internal/auth"
	"github.com/communitycare/carefund/services/campaigns/internal/campaign"
	"github.com/communitycare/carefund/services/campaigns/internal/database"
	"github.com/communitycare/carefund/services/campaigns/internal/upi"
	"github.com/communitycare/carefund/services/campaigns/pkg/models"
)

type store interface {
	campaign.Store
	GetPaymentOrder(ctx context.Context, id string) (*models.PaymentOrder, error)
	Close() error
}

// cli carries the flags shared by every subcommand.
type cli struct {
	cfg     *config.Config
	backend string
	dbPath  string
	asJSON  bool
}

func newRootCmd() *cobra.Command {
	c := &cli{cfg: config.Load()}

	root := &cobra.Command{
		Use:           "carectl",
		Short:         "Manage CareFund campaigns from the command line",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.backend, "backend", c.cfg.DB.Backend, "store backend (sqlite or firestore)")
	root.PersistentFlags().StringVar(&c.dbPath, "db", c.cfg.DB.Path, "SQLite database path")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print JSON instead of a table")

	root.AddCommand(
		c.listCmd("pending", models.StatusPending),
		c.listCmd("approved", models.StatusApproved),
		c.approveCmd(),
		c.reviewCmd("reject", "Reject a pending campaign", func(ctx context.Context, s *campaign.Service, id string) (*models.Campaign, error) {
			return s.Reject(ctx, id)
		}),
		c.reviewCmd("toggle-emergency", "Flip the emergency flag of an approved campaign", func(ctx context.Context, s *campaign.Service, id string) (*models.Campaign, error) {
			return s.ToggleEmergency(ctx, id)
		}),
		c.statsCmd(),
		c.upiCmd(),
		c.donationsCmd(),
		c.orderCmd(),
		c.payCmd(),
		hashPasswordCmd(),
	)
	return root
}

// withService opens the store for the duration of fn.
func (c *cli) withService(ctx context.Context, fn func(*campaign.Service) error) error {
	return c.withStore(ctx, func(db store) error {
		return fn(campaign.NewService(db, nil, receipts.LogPublisher{}, campaign.Options{
			PageSize:     c.cfg.Listing.PageSize,
			MerchantUPI:  c.cfg.UPI.MerchantID,
			MerchantName: c.cfg.UPI.MerchantName,
		}))
	})
}

func (c *cli) withStore(ctx context.Context, fn func(store) error) error {
	var (
		db  store
		err error
	)
	switch c.backend {
	case "firestore":
		var opts []option.ClientOption
		if c.cfg.Firebase.CredentialsPath != "" {
			opts = append(opts, option.WithCredentialsFile(c.cfg.Firebase.CredentialsPath))
		}
		db, err = database.NewFirestore(ctx, c.cfg.Firebase.ProjectID, c.cfg.Firebase.FirestoreDatabase, opts...)
	case "sqlite", "":
		db, err = database.New(c.dbPath)
	default:
		return fmt.Errorf("unknown backend %q", c.backend)
	}
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	return fn(db)
}

func (c *cli) print(w io.Writer, v interface{}, table func(*tabwriter.Writer)) error {
	if c.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

func (c *cli) printCampaigns(w io.Writer, list []models.Campaign) error {
	return c.print(w, list, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tNAME\tTARGET\tEMERGENCY\tPAYOUT\tPHONE\tCREATED")
		for _, cp := range list {
			payout := cp.UPIID
			if payout == "" {
				payout = cp.BankAccount + "/" + cp.IFSCCode
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
				cp.ID, cp.Name, upi.FormatAmount(cp.TargetAmount), cp.IsEmergency, payout, cp.Phone,
				cp.CreatedAt.Format("2006-01-02 15:04"))
		}
	})
}

func (c *cli) listCmd(name string, status models.CampaignStatus) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("List %s campaigns", status),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd.Context(), func(s *campaign.Service) error {
				ov, err := s.Overview(cmd.Context())
				if err != nil {
					return err
				}
				list := ov.Pending
				if status == models.StatusApproved {
					list = ov.Approved
				}
				return c.printCampaigns(cmd.OutOrStdout(), list)
			})
		},
	}
}

func (c *cli) approveCmd() *cobra.Command {
	var emergency bool
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(s *campaign.Service) error {
				cp, err := s.Approve(cmd.Context(), args[0], emergency)
				if err != nil {
					return err
				}
				return c.printCampaigns(cmd.OutOrStdout(), []models.Campaign{*cp})
			})
		},
	}
	cmd.Flags().BoolVar(&emergency, "emergency", false, "mark the campaign as an emergency")
	return cmd
}

func (c *cli) reviewCmd(name, short string, action func(context.Context, *campaign.Service, string) (*models.Campaign, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(s *campaign.Service) error {
				cp, err := action(cmd.Context(), s, args[0])
				if err != nil {
					return err
				}
				return c.printCampaigns(cmd.OutOrStdout(), []models.Campaign{*cp})
			})
		},
	}
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show review and donation counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd.Context(), func(s *campaign.Service) error {
				ov, err := s.Overview(cmd.Context())
				if err != nil {
					return err
				}
				st := ov.Stats
				return c.print(cmd.OutOrStdout(), st, func(tw *tabwriter.Writer) {
					fmt.Fprintf(tw, "Pending\t%d\n", st.Pending)
					fmt.Fprintf(tw, "Approved\t%d\n", st.Approved)
					fmt.Fprintf(tw, "Rejected\t%d\n", st.Rejected)
					fmt.Fprintf(tw, "Emergency\t%d\n", st.Emergency)
					fmt.Fprintf(tw, "Donations\tRs %s (%sL)\n", upi.FormatAmount(st.TotalDonations), st.TotalDonationsLakh)
				})
			})
		},
	}
}

func (c *cli) upiCmd() *cobra.Command {
	var amount, qrPath string
	cmd := &cobra.Command{
		Use:   "upi [campaign-id]",
		Short: "Print the UPI payment link for a campaign or the general fund",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt := decimal.Zero
			if strings.TrimSpace(amount) != "" {
				var err error
				if amt, err = decimal.NewFromString(amount); err != nil {
					return fmt.Errorf("invalid amount %q", amount)
				}
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			}

			return c.withService(cmd.Context(), func(s *campaign.Service) error {
				png, info, err := s.QRCode(cmd.Context(), id, amt)
				if err != nil {
					return err
				}
				if qrPath != "" {
					if err := os.WriteFile(qrPath, png, 0o644); err != nil {
						return fmt.Errorf("write qr: %w", err)
					}
				}
				return c.print(cmd.OutOrStdout(), info, func(tw *tabwriter.Writer) {
					fmt.Fprintln(tw, info.URI)
				})
			})
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "prefilled amount in rupees")
	cmd.Flags().StringVar(&qrPath, "qr", "", "also write the QR code PNG to this file")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
