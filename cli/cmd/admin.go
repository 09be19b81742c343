package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/parkline/parkpos/cli/pkg/output"
	"github.com/parkline/parkpos/internal/api"
	"github.com/parkline/parkpos/internal/notify"
	"github.com/parkline/parkpos/internal/router"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Manage registered clients",
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		page, _ := cmd.Flags().GetInt("page")
		size, _ := cmd.Flags().GetInt("size")

		a, scope, err := enter(cmd.Context(), router.ClientsRoute)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.API.ListClients(scope, api.ClientQuery{Search: search, Page: page, Size: size})
		if err != nil {
			return err
		}

		return output.Print(outputFormat, result, func() *output.Table {
			t := output.NewTable("ID", "DOCUMENT", "NAME", "EMAIL", "PHONE")
			for _, c := range result.Content {
				t.AddRow(
					strconv.FormatInt(c.ID, 10),
					c.DocumentType+" "+c.DocumentNumber,
					c.Name,
					deref(c.Email),
					deref(c.Phone),
				)
			}
			return t
		})
	},
}

var clientsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a client",
	RunE: func(cmd *cobra.Command, args []string) error {
		docType, _ := cmd.Flags().GetString("document-type")
		docNumber, _ := cmd.Flags().GetString("document")
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		phone, _ := cmd.Flags().GetString("phone")
		country, _ := cmd.Flags().GetInt64("country")
		if docNumber == "" || name == "" {
			return errors.New("--document and --name are required")
		}

		a, scope, err := enter(cmd.Context(), router.ClientsRoute)
		if err != nil {
			return err
		}
		defer a.Close()

		in := api.Customer{
			DocumentType:   docType,
			DocumentNumber: docNumber,
			Name:           name,
			Email:          optional(email),
			Phone:          optional(phone),
		}
		if country != 0 {
			in.CountryID = &country
		}

		created, err := a.API.CreateClient(scope, in)
		if err != nil {
			return err
		}
		if outputFormat != output.FormatTable {
			return output.Print(outputFormat, created, nil)
		}
		output.Notify(notify.Success("Client created", fmt.Sprintf("%s (id %d)", created.Name, created.ID)))
		return nil
	},
}

var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "List countries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, scope, err := enter(cmd.Context(), router.CountriesRoute)
		if err != nil {
			return err
		}
		defer a.Close()

		countries, err := a.API.Countries(scope)
		if err != nil {
			return err
		}
		return output.Print(outputFormat, countries, func() *output.Table {
			t := output.NewTable("ID", "CODE", "NAME", "DIAL")
			for _, c := range countries {
				t.AddRow(strconv.FormatInt(c.ID, 10), c.Code, c.Name, c.DialCode)
			}
			return t
		})
	},
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func init() {
	rootCmd.AddCommand(clientsCmd, countriesCmd)
	clientsCmd.AddCommand(clientsListCmd, clientsCreateCmd)

	clientsListCmd.Flags().StringP("search", "s", "", "Filter by name or document")
	clientsListCmd.Flags().Int("page", 0, "Page number")
	clientsListCmd.Flags().Int("size", 20, "Page size")

	clientsCreateCmd.Flags().String("document-type", "CC", "Document type")
	clientsCreateCmd.Flags().String("document", "", "Document number")
	clientsCreateCmd.Flags().String("name", "", "Full name")
	clientsCreateCmd.Flags().String("email", "", "Email")
	clientsCreateCmd.Flags().String("phone", "", "Phone")
	clientsCreateCmd.Flags().Int64("country", 0, "Country id")
}
