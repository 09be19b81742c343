package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type Shift struct {
	ShiftConnectionHistoryID int64      `json:"shiftConnectionHistoryId"`
	CashRegisterID           int64      `json:"cashRegisterId"`
	Open                     bool       `json:"open"`
	OpenedAt                 *time.Time `json:"openedAt"`
	OpeningBalance           float64    `json:"openingBalance"`
	CurrentBalance           float64    `json:"currentBalance"`
}

type CloseCashRegisterRequest struct {
	DeclaredAmount float64 `json:"declaredAmount"`
	Notes          string  `json:"notes,omitempty"`
}

type CashRegisterClosure struct {
	CashRegisterID int64     `json:"cashRegisterId"`
	ExpectedAmount float64   `json:"expectedAmount"`
	DeclaredAmount float64   `json:"declaredAmount"`
	Difference     float64   `json:"difference"`
	ClosedAt       time.Time `json:"closedAt"`
}

// CurrentShift returns the operator's shift for serviceCode.
func (c *Client) CurrentShift(ctx context.Context, serviceCode string) (*Shift, error) {
	query := url.Values{"serviceCode": {serviceCode}}
	var s Shift
	if err := c.do(ctx, http.MethodGet, "/shifts/current", query, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CloseCashRegister closes the cash register, ending the shift.
func (c *Client) CloseCashRegister(ctx context.Context, id int64, req CloseCashRegisterRequest) (*CashRegisterClosure, error) {
	var out CashRegisterClosure
	path := "/cash-registers/" + strconv.FormatInt(id, 10) + "/close"
	if err := c.do(ctx, http.MethodPost, path, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
