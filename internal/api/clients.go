package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Customer is a registered client of the parking business.
type Customer struct {
	ID             int64   `json:"id,omitempty"`
	DocumentType   string  `json:"documentType"`
	DocumentNumber string  `json:"documentNumber"`
	Name           string  `json:"name"`
	Email          *string `json:"email"`
	Phone          *string `json:"phone"`
	CountryID      *int64  `json:"countryId"`
}

type ClientQuery struct {
	Search string
	Page   int
	Size   int
}

type ClientPage struct {
	Content       []Customer `json:"content"`
	TotalElements int64      `json:"totalElements"`
	TotalPages    int        `json:"totalPages"`
	Page          int        `json:"page"`
	Size          int        `json:"size"`
}

// ListClients returns one page of clients. Concurrent listings are not
// sequenced; the caller keeps whichever response arrives last.
func (c *Client) ListClients(ctx context.Context, q ClientQuery) (*ClientPage, error) {
	query := url.Values{}
	if q.Search != "" {
		query.Set("search", q.Search)
	}
	if q.Page > 0 {
		query.Set("page", strconv.Itoa(q.Page))
	}
	if q.Size > 0 {
		query.Set("size", strconv.Itoa(q.Size))
	}

	var page ClientPage
	if err := c.do(ctx, http.MethodGet, "/clients", query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateClient registers a client and returns it with its id.
func (c *Client) CreateClient(ctx context.Context, in Customer) (*Customer, error) {
	var out Customer
	if err := c.do(ctx, http.MethodPost, "/clients", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
