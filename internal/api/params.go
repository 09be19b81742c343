package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Params fetches the session parameters for serviceCode under the given
// API scope, returning the body verbatim.
func (c *Client) Params(ctx context.Context, scope, serviceCode string) (json.RawMessage, error) {
	path := "/" + url.PathEscape(scope) + "/params/" + url.PathEscape(serviceCode)
	data, err := c.raw(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
