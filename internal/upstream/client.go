package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/YouXam/ucloud-bot/internal/dto"
)

// Client is the typed view of the backend endpoints. Reads race the pool,
// writes walk it in order so a mutation is applied by at most one mirror.
type Client struct {
	dispatcher *Dispatcher
}

func NewClient(dispatcher *Dispatcher) *Client {
	return &Client{dispatcher: dispatcher}
}

// UndoneList fetches the user's outstanding items. A 401 means the stored
// credentials are no longer valid.
func (c *Client) UndoneList(ctx context.Context, cred Credentials) (*dto.UndoneList, error) {
	var out dto.UndoneList
	if err := c.getJSON(ctx, cred, "/undoneList", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Homework fetches an assignment's detail.
func (c *Client) Homework(ctx context.Context, cred Credentials, id string) (*dto.Detail, error) {
	var out dto.Detail
	if err := c.getJSON(ctx, cred, "/homework?id="+url.QueryEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CachedItem fetches cached metadata for item types the detail endpoint does
// not serve (quizzes and surveys).
func (c *Client) CachedItem(ctx context.Context, cred Credentials, id string) (*dto.UndoneItem, error) {
	var out dto.UndoneItem
	if err := c.getJSON(ctx, cred, "/cache?id="+url.QueryEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload asks the backend to ingest a file from a temporary URL.
func (c *Client) Upload(ctx context.Context, cred Credentials, req dto.UploadRequest) (*dto.UploadResult, error) {
	var out dto.UploadResult
	if err := c.postJSON(ctx, cred, "/upload", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit finalizes a submission.
func (c *Client) Submit(ctx context.Context, cred Credentials, req dto.SubmitRequest) error {
	return c.postJSON(ctx, cred, "/submit", req, nil)
}

func (c *Client) getJSON(ctx context.Context, cred Credentials, path string, out interface{}) error {
	resp, err := c.dispatcher.Dispatch(ctx, Race, Request{
		Method:      http.MethodGet,
		Path:        path,
		Credentials: cred,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return errors.Wrapf(err, "failed to decode %s response from %s", path, resp.Endpoint)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, cred Credentials, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s request", path)
	}

	resp, err := c.dispatcher.Dispatch(ctx, Fallback, Request{
		Method:      http.MethodPost,
		Path:        path,
		Header:      http.Header{"Content-Type": []string{"application/json"}},
		Body:        body,
		Credentials: cred,
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return errors.Wrapf(err, "failed to decode %s response from %s", path, resp.Endpoint)
	}
	return nil
}
