package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/parkline/parkpos/cli/pkg/output"
	"github.com/parkline/parkpos/internal/api"
	"github.com/parkline/parkpos/internal/app"
	"github.com/parkline/parkpos/internal/guard"
	"github.com/parkline/parkpos/internal/params"
	"github.com/parkline/parkpos/internal/router"
)

// errNoOpenShift is returned by operations that need an open shift.
var errNoOpenShift = errors.New("no open shift for this service; open one at the cash register first")

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Show the session parameters of this point of sale",
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := serviceCode(cmd)
		if err != nil {
			return err
		}
		a, scope, err := enter(cmd.Context(), guard.DefaultRoute)
		if err != nil {
			return err
		}
		defer a.Close()

		if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
			a.Params.Invalidate(scope, code)
		}
		p, err := a.Params.Get(scope, code)
		if err != nil {
			return err
		}

		return output.Print(outputFormat, p, func() *output.Table {
			types := make([]string, 0, len(p.VehicleTypes))
			for _, vt := range p.VehicleTypes {
				types = append(types, vt.Code)
			}
			return output.KeyValues(
				[2]string{"Service code", code},
				[2]string{"Shift open", strconv.FormatBool(p.ShiftOpen)},
				[2]string{"Shift", optionalID(p.ShiftConnectionHistoryID)},
				[2]string{"Cash register", optionalID(p.CashRegisterID)},
				[2]string{"Vehicle types", strings.Join(types, ", ")},
				[2]string{"Can manage cash exit", strconv.FormatBool(p.Permissions.CanManageCashExit)},
				[2]string{"Can close cash register", strconv.FormatBool(p.Permissions.CanCloseCashRegister)},
				[2]string{"Can void ticket", strconv.FormatBool(p.Permissions.CanVoidTicket)},
			)
		})
	},
}

var checkinCmd = &cobra.Command{
	Use:   "checkin <plate>",
	Short: "Register a vehicle entering the lot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := serviceCode(cmd)
		if err != nil {
			return err
		}
		a, scope, err := enter(cmd.Context(), router.CheckInRoute)
		if err != nil {
			return err
		}
		defer a.Close()

		p, shiftID, err := openShift(scope, a, code)
		if err != nil {
			return err
		}
		wanted, _ := cmd.Flags().GetString("vehicle-type")
		vt, err := vehicleType(p, wanted)
		if err != nil {
			return err
		}

		ticket, err := a.API.CheckIn(scope, api.CheckInRequest{
			Plate:                    normalizePlate(args[0]),
			VehicleTypeID:            vt.ID,
			ServiceCode:              code,
			ShiftConnectionHistoryID: shiftID,
		})
		if err != nil {
			return err
		}

		if outputFormat != output.FormatTable {
			return output.Print(outputFormat, ticket, nil)
		}
		output.Success("Ticket %s issued for %s (%s)", ticket.Number, ticket.Plate, vt.Name)
		return nil
	},
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout <plate>",
	Short: "Register a vehicle leaving the lot and show the charge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := serviceCode(cmd)
		if err != nil {
			return err
		}
		a, scope, err := enter(cmd.Context(), router.CheckOutRoute)
		if err != nil {
			return err
		}
		defer a.Close()

		_, shiftID, err := openShift(scope, a, code)
		if err != nil {
			return err
		}

		charge, err := a.API.CheckOut(scope, api.CheckOutRequest{
			Plate:                    normalizePlate(args[0]),
			ServiceCode:              code,
			ShiftConnectionHistoryID: shiftID,
		})
		if err != nil {
			return err
		}

		return output.Print(outputFormat, charge, func() *output.Table {
			return output.KeyValues(
				[2]string{"Ticket", charge.TicketNumber},
				[2]string{"Plate", charge.Plate},
				[2]string{"Time", (time.Duration(charge.Minutes) * time.Minute).String()},
				[2]string{"Amount", fmt.Sprintf("%.2f %s", charge.Amount, charge.Currency)},
			)
		})
	},
}

var shiftCmd = &cobra.Command{
	Use:   "shift",
	Short: "Shift and cash register commands",
}

var shiftStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current shift",
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := serviceCode(cmd)
		if err != nil {
			return err
		}
		a, scope, err := enter(cmd.Context(), router.ShiftRoute)
		if err != nil {
			return err
		}
		defer a.Close()

		shift, err := a.API.CurrentShift(scope, code)
		if err != nil {
			return err
		}
		return output.Print(outputFormat, shift, func() *output.Table {
			opened := "-"
			if shift.OpenedAt != nil {
				opened = shift.OpenedAt.Local().Format(time.DateTime)
			}
			return output.KeyValues(
				[2]string{"Open", strconv.FormatBool(shift.Open)},
				[2]string{"Shift", strconv.FormatInt(shift.ShiftConnectionHistoryID, 10)},
				[2]string{"Cash register", strconv.FormatInt(shift.CashRegisterID, 10)},
				[2]string{"Opened at", opened},
				[2]string{"Opening balance", fmt.Sprintf("%.2f", shift.OpeningBalance)},
				[2]string{"Current balance", fmt.Sprintf("%.2f", shift.CurrentBalance)},
			)
		})
	},
}

var shiftCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the cash register and end the shift",
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := serviceCode(cmd)
		if err != nil {
			return err
		}
		declared, _ := cmd.Flags().GetFloat64("declared")
		notes, _ := cmd.Flags().GetString("notes")

		a, scope, err := enter(cmd.Context(), router.CashRegisterRoute)
		if err != nil {
			return err
		}
		defer a.Close()

		p, _, err := openShift(scope, a, code)
		if err != nil {
			return err
		}
		if !p.Permissions.CanCloseCashRegister {
			return errors.New("you are not allowed to close the cash register right now")
		}
		if p.CashRegisterID == nil {
			return errors.New("no cash register linked to the current shift")
		}

		closure, err := a.API.CloseCashRegister(scope, *p.CashRegisterID, api.CloseCashRegisterRequest{
			DeclaredAmount: declared,
			Notes:          notes,
		})
		if err != nil {
			return err
		}
		// The cached parameters still describe the open shift.
		a.Params.Invalidate(scope, code)

		if outputFormat != output.FormatTable {
			return output.Print(outputFormat, closure, nil)
		}
		output.Success("Cash register %d closed", closure.CashRegisterID)
		output.KeyValues(
			[2]string{"Expected", fmt.Sprintf("%.2f", closure.ExpectedAmount)},
			[2]string{"Declared", fmt.Sprintf("%.2f", closure.DeclaredAmount)},
			[2]string{"Difference", fmt.Sprintf("%.2f", closure.Difference)},
		).Render()
		return nil
	},
}

// openShift loads the cached parameters and requires an open shift.
func openShift(ctx context.Context, a *app.App, code string) (*params.Parameters, int64, error) {
	p, err := a.Params.Get(ctx, code)
	if err != nil {
		return nil, 0, err
	}
	if !p.ShiftOpen || p.ShiftConnectionHistoryID == nil {
		return nil, 0, errNoOpenShift
	}
	return p, *p.ShiftConnectionHistoryID, nil
}

func vehicleType(p *params.Parameters, wanted string) (params.VehicleType, error) {
	if len(p.VehicleTypes) == 0 {
		return params.VehicleType{}, errors.New("no vehicle types configured for this service")
	}
	if wanted == "" {
		return p.VehicleTypes[0], nil
	}
	for _, vt := range p.VehicleTypes {
		if strings.EqualFold(vt.Code, wanted) || strconv.FormatInt(vt.ID, 10) == wanted {
			return vt, nil
		}
	}
	return params.VehicleType{}, fmt.Errorf("unknown vehicle type %q", wanted)
}

func normalizePlate(plate string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(plate), " ", ""))
}

func optionalID(id *int64) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatInt(*id, 10)
}

func init() {
	rootCmd.AddCommand(paramsCmd, checkinCmd, checkoutCmd, shiftCmd)
	shiftCmd.AddCommand(shiftStatusCmd, shiftCloseCmd)

	for _, c := range []*cobra.Command{paramsCmd, checkinCmd, checkoutCmd, shiftStatusCmd, shiftCloseCmd} {
		c.Flags().String("service-code", "", "Service code of this point of sale (default from config)")
	}
	paramsCmd.Flags().Bool("refresh", false, "Ignore the cached parameters")
	checkinCmd.Flags().StringP("vehicle-type", "t", "", "Vehicle type code or id (default: first configured)")
	shiftCloseCmd.Flags().Float64("declared", 0, "Cash amount counted in the register")
	shiftCloseCmd.Flags().String("notes", "", "Closing notes")
}
