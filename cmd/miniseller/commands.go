package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Israelam72/mini-seller-console/internal/config"
	"github.com/Israelam72/mini-seller-console/internal/conversion"
	"github.com/Israelam72/mini-seller-console/internal/crm"
	"github.com/Israelam72/mini-seller-console/internal/export"
	"github.com/Israelam72/mini-seller-console/internal/query"
)

// --- leads ---

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List, edit, convert and export leads",
}

type listOptions struct {
	Search    string
	Statuses  []string
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

func (o listOptions) encode() string {
	v := url.Values{}
	if o.Search != "" {
		v.Set("search", o.Search)
	}
	if len(o.Statuses) > 0 {
		v.Set("status", strings.Join(o.Statuses, ","))
	}
	if o.SortBy != "" {
		v.Set("sort_by", o.SortBy)
	}
	if o.SortOrder != "" {
		v.Set("sort_order", o.SortOrder)
	}
	if o.Page > 0 {
		v.Set("page", strconv.Itoa(o.Page))
	}
	if o.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(o.PageSize))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

func listOptionsFromFlags(cmd *cobra.Command) listOptions {
	var o listOptions
	o.Search, _ = cmd.Flags().GetString("search")
	o.Statuses, _ = cmd.Flags().GetStringSlice("status")
	o.SortBy, _ = cmd.Flags().GetString("sort-by")
	o.SortOrder, _ = cmd.Flags().GetString("sort-order")
	o.Page, _ = cmd.Flags().GetInt("page")
	o.PageSize, _ = cmd.Flags().GetInt("page-size")
	return o
}

func listLeads(ctx context.Context, c *apiClient, o listOptions) (query.Page[crm.Lead], error) {
	var page query.Page[crm.Lead]
	resp, err := c.get(ctx, "/leads"+o.encode())
	if err != nil {
		return page, err
	}
	err = decodeJSON(resp, &page)
	return page, err
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads",
	Long: `List leads, highest score first.

Examples:
  miniseller leads list --status New,Contacted
  miniseller leads list --search acme --sort-by name --sort-order asc`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		page, err := listLeads(cmd.Context(), client, listOptionsFromFlags(cmd))
		if err != nil {
			return err
		}

		if len(page.Results) == 0 {
			fmt.Println("No leads found.")
			return nil
		}
		for _, l := range page.Results {
			fmt.Println(formatLead(l))
		}
		printPageFooter(page.Meta)
		return nil
	},
}

func formatLead(l crm.Lead) string {
	return fmt.Sprintf("%s  %-20s %-20s %-28s %3d  %s",
		colorize(colorCyan, fmt.Sprintf("%4d", l.ID)),
		truncate(l.Name, 20),
		truncate(l.Company, 20),
		truncate(l.Email, 28),
		l.Score,
		colorize(statusColor(l.Status), string(l.Status)),
	)
}

func statusColor(s crm.Status) string {
	switch s {
	case crm.StatusQualified:
		return colorGreen
	case crm.StatusUnqualified:
		return colorRed
	case crm.StatusContacted:
		return colorYellow
	default:
		return colorBold
	}
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}

func printPageFooter(m query.Meta) {
	fmt.Fprintf(os.Stderr, "\npage %d of %d (%d total)\n", m.Page, m.Pages, m.Count)
}

var leadsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a lead's email or status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid lead id %q", args[0])
		}

		body := map[string]string{}
		if cmd.Flags().Changed("email") {
			body["email"], _ = cmd.Flags().GetString("email")
		}
		if cmd.Flags().Changed("status") {
			body["status"], _ = cmd.Flags().GetString("status")
		}
		if len(body) == 0 {
			return fmt.Errorf("one of --email or --status is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := updateLead(cmd.Context(), client, id, body); err != nil {
			var re *remoteError
			if errors.As(err, &re) && re.committed() {
				printWarning("Server reported a failure but the change to lead %d was saved", id)
			}
			return err
		}

		printSuccess("Updated lead %d", id)
		return nil
	},
}

func updateLead(ctx context.Context, c *apiClient, id int, body map[string]string) error {
	resp, err := c.patch(ctx, fmt.Sprintf("/leads/%d", id), body)
	if err != nil {
		return err
	}
	var result map[string]string
	return decodeJSON(resp, &result)
}

var leadsConvertCmd = &cobra.Command{
	Use:   "convert <id>",
	Short: "Convert a lead into an opportunity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid lead id %q", args[0])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		res, err := convertLead(cmd.Context(), client, id)
		if err != nil {
			return err
		}

		o := res.Opportunity
		if res.Partial {
			printWarning("Opportunity %d created but lead %d could not be removed", o.ID, id)
		} else {
			printSuccess("Converted lead %d", id)
		}
		printStatus("Account", "%s", o.AccountName)
		printStatus("Stage", "%s", o.Stage)
		printStatus("Amount", "%d", o.Amount)
		return nil
	},
}

func convertLead(ctx context.Context, c *apiClient, id int) (conversion.Result, error) {
	var res conversion.Result
	resp, err := c.post(ctx, fmt.Sprintf("/leads/%d/convert", id), nil)
	if err != nil {
		return res, err
	}
	err = decodeJSON(resp, &res)
	return res, err
}

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every lead as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if output == "-" {
			_, err := exportLeads(cmd.Context(), client, os.Stdout)
			return err
		}
		n, err := exportToFile(cmd.Context(), client, output)
		if err != nil {
			return err
		}

		printSuccess("Exported %d leads to %s", n, output)
		return nil
	},
}

// exportLeads fetches the full lead collection and writes it to w. It
// returns the number of leads written.
func exportLeads(ctx context.Context, c *apiClient, w io.Writer) (int, error) {
	resp, err := c.get(ctx, "/leads/export")
	if err != nil {
		return 0, err
	}
	var leads []crm.Lead
	if err := decodeJSON(resp, &leads); err != nil {
		return 0, err
	}
	if err := export.WriteLeads(w, leads); err != nil {
		return 0, err
	}
	return len(leads), nil
}

// exportToFile fetches the export before touching path, so a failed request
// leaves any existing file as it was.
func exportToFile(ctx context.Context, c *apiClient, path string) (int, error) {
	var buf bytes.Buffer
	n, err := exportLeads(ctx, c, &buf)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("writing output file: %w", err)
	}
	return n, nil
}

var leadsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every stored lead; the seed dataset is restored on next list",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL stored leads. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/leads?confirm=true")
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("All leads deleted")
		return nil
	},
}

func addListFlags(cmd *cobra.Command, sortBy string) {
	cmd.Flags().String("search", "", "case-insensitive search term")
	cmd.Flags().String("sort-by", "", "field to sort by (default "+sortBy+")")
	cmd.Flags().String("sort-order", "", "asc or desc (default desc)")
	cmd.Flags().Int("page", 1, "page number")
	cmd.Flags().Int("page-size", query.DefaultPageSize, "results per page")
}

func init() {
	addListFlags(leadsListCmd, "score")
	leadsListCmd.Flags().StringSlice("status", nil, "comma-separated statuses to include")

	leadsUpdateCmd.Flags().String("email", "", "new email address")
	leadsUpdateCmd.Flags().String("status", "", "new status (New, Contacted, Qualified, Unqualified)")

	leadsExportCmd.Flags().StringP("output", "o", export.Filename, "output file path, - for stdout")
	leadsResetCmd.Flags().Bool("confirm", false, "confirm lead deletion")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsUpdateCmd)
	leadsCmd.AddCommand(leadsConvertCmd)
	leadsCmd.AddCommand(leadsExportCmd)
	leadsCmd.AddCommand(leadsResetCmd)
}

// --- opportunities ---

var opportunitiesCmd = &cobra.Command{
	Use:     "opportunities",
	Aliases: []string{"opps"},
	Short:   "Inspect converted opportunities",
}

func listOpportunities(ctx context.Context, c *apiClient, o listOptions) (query.Page[crm.Opportunity], error) {
	var page query.Page[crm.Opportunity]
	resp, err := c.get(ctx, "/opportunities"+o.encode())
	if err != nil {
		return page, err
	}
	err = decodeJSON(resp, &page)
	return page, err
}

var opportunitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List opportunities, largest amount first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		page, err := listOpportunities(cmd.Context(), client, listOptionsFromFlags(cmd))
		if err != nil {
			return err
		}

		if len(page.Results) == 0 {
			fmt.Println("No opportunities found.")
			return nil
		}
		for _, o := range page.Results {
			fmt.Printf("%s  %-32s %-16s %6d\n",
				colorize(colorCyan, fmt.Sprintf("%4d", o.ID)),
				truncate(o.AccountName, 32),
				o.Stage,
				o.Amount,
			)
		}
		printPageFooter(page.Meta)
		return nil
	},
}

func init() {
	addListFlags(opportunitiesListCmd, "amount")
	opportunitiesCmd.AddCommand(opportunitiesListCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
