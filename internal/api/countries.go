package api

import (
	"context"
	"net/http"
	"time"
)

// CountriesTimeout bounds the country listing. It is the only call with a
// local deadline.
const CountriesTimeout = 30 * time.Second

type Country struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	DialCode string `json:"dialCode"`
}

func (c *Client) Countries(ctx context.Context) ([]Country, error) {
	ctx, cancel := context.WithTimeout(ctx, CountriesTimeout)
	defer cancel()

	var out []Country
	if err := c.do(ctx, http.MethodGet, "/countries", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
