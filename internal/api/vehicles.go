package api

import (
	"context"
	"net/http"
	"time"
)

type CheckInRequest struct {
	Plate                    string `json:"plate"`
	VehicleTypeID            int64  `json:"vehicleTypeId"`
	ServiceCode              string `json:"serviceCode"`
	ShiftConnectionHistoryID int64  `json:"shiftConnectionHistoryId"`
}

type Ticket struct {
	ID          int64     `json:"id"`
	Number      string    `json:"number"`
	Plate       string    `json:"plate"`
	VehicleType string    `json:"vehicleType"`
	EnteredAt   time.Time `json:"enteredAt"`
}

type CheckOutRequest struct {
	Plate                    string `json:"plate"`
	ServiceCode              string `json:"serviceCode"`
	ShiftConnectionHistoryID int64  `json:"shiftConnectionHistoryId"`
}

type Charge struct {
	TicketNumber string    `json:"ticketNumber"`
	Plate        string    `json:"plate"`
	EnteredAt    time.Time `json:"enteredAt"`
	ExitedAt     time.Time `json:"exitedAt"`
	Minutes      int64     `json:"minutes"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
}

// CheckIn registers a vehicle entering the lot.
func (c *Client) CheckIn(ctx context.Context, req CheckInRequest) (*Ticket, error) {
	var t Ticket
	if err := c.do(ctx, http.MethodPost, "/vehicles/check-in", nil, req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CheckOut registers a vehicle leaving and returns what it owes.
func (c *Client) CheckOut(ctx context.Context, req CheckOutRequest) (*Charge, error) {
	var ch Charge
	if err := c.do(ctx, http.MethodPost, "/vehicles/check-out", nil, req, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}
