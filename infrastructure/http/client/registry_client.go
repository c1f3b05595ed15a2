package client

import (
	"context"
	"dm-relay/contract"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// RegistryClient talks to the identity registry endpoints.
type RegistryClient struct {
	*Client
}

func NewRegistryClient(c *Client) *RegistryClient {
	return &RegistryClient{Client: c}
}

type registerRequest struct {
	Name string `json:"name"`
}

type registerResponse struct {
	ClientURI string `json:"client_uri"`
	Error     string `json:"error"`
}

// Register posts the name. A 409 is read like a 2xx without client_uri:
// the registry answered, and refused.
func (c *RegistryClient) Register(ctx context.Context, name string) (contract.RegisterReply, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/register", registerRequest{Name: name})
	if err != nil {
		return contract.RegisterReply{}, err
	}
	var reply contract.RegisterReply
	err = c.do(req,
		func(status int) bool { return status == http.StatusConflict },
		func(resp *http.Response) error {
			var body registerResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				if resp.StatusCode == http.StatusConflict {
					reply.Error = "name already registered"
					return nil
				}
				return fmt.Errorf("decode register reply: %w", err)
			}
			reply = contract.RegisterReply{ClientURI: body.ClientURI, Error: body.Error}
			if resp.StatusCode == http.StatusConflict {
				reply.ClientURI = ""
			}
			return nil
		})
	if err != nil {
		return contract.RegisterReply{}, err
	}
	return reply, nil
}

// Validate succeeds only when the registry answers the existence check with a 2xx.
func (c *RegistryClient) Validate(ctx context.Context, name string) error {
	req, err := c.newJSONRequest(ctx, http.MethodGet, "/validate?username="+url.QueryEscape(name), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil, nil)
}

type searchResponse struct {
	Users []string `json:"users"`
}

func (c *RegistryClient) Search(ctx context.Context, query string) ([]string, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, "/search?query="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	var body searchResponse
	err = c.do(req, nil, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("decode search reply: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body.Users, nil
}
