package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/parkline/parkpos/cli/pkg/output"
)

type navigation struct {
	Requested string   `json:"requested" yaml:"requested"`
	URL       string   `json:"url" yaml:"url"`
	Title     string   `json:"title,omitempty" yaml:"title,omitempty"`
	Blocked   []string `json:"blocked,omitempty" yaml:"blocked,omitempty"`
}

var openCmd = &cobra.Command{
	Use:   "open <url>",
	Short: "Show where a navigation would end up for the current session",
	Long: `Run the route guards for <url> against the stored session and print
the view the operator would land on, e.g.

  parkpos open /pos/vehicles/check-in
  parkpos open /admin/clients`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Router.Navigate(ctx, args[0])
		if err != nil {
			return err
		}

		nav := navigation{Requested: args[0], URL: res.URL, Title: res.Route.Title, Blocked: res.Blocked}
		if outputFormat != output.FormatTable {
			return output.Print(outputFormat, nav, nil)
		}
		if res.Redirected() {
			output.Warn("%s -> %s", strings.Join(res.Blocked, " -> "), res.URL)
			return nil
		}
		output.Success("%s (%s)", res.URL, res.Route.Title)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(openCmd)
}
