package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/gitmap-dev/gitmap/webmap"
)

const sharingPath = "/sharing/rest"

// Client is the REST implementation of Portal against the portal
// sharing API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a portal client for the given base URL. The token
// may be empty for anonymous access.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) FetchItem(ctx context.Context, itemID string) (*ItemInfo, error) {
	body, err := c.get(ctx, "/content/items/"+url.PathEscape(itemID), nil)
	if err != nil {
		return nil, err
	}
	return itemFromJSON(gjson.ParseBytes(body)), nil
}

func (c *Client) FetchDocument(ctx context.Context, itemID string) (*webmap.Document, error) {
	body, err := c.get(ctx, "/content/items/"+url.PathEscape(itemID)+"/data", nil)
	if err != nil {
		return nil, err
	}
	return webmap.Parse(body)
}

func (c *Client) WriteDocument(ctx context.Context, itemID string, doc *webmap.Document, info ItemInfo) (string, error) {
	if itemID != "" && info.Modified > 0 {
		current, err := c.FetchItem(ctx, itemID)
		if err != nil {
			return "", err
		}
		if current.Modified > info.Modified {
			return "", fmt.Errorf("item %s: %w", itemID, ErrRemoteConflict)
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	form := url.Values{
		"f":    {"json"},
		"text": {string(data)},
	}
	owner := info.Owner
	if owner == "" {
		owner = "self"
	}
	var path string
	if itemID == "" {
		form.Set("title", info.Title)
		form.Set("type", "Web Map")
		form.Set("tags", strings.Join(info.Tags, ","))
		path = "/content/users/" + url.PathEscape(owner) + "/addItem"
	} else {
		path = "/content/users/" + url.PathEscape(owner) + "/items/" + url.PathEscape(itemID) + "/update"
	}

	body, err := c.post(ctx, path, form)
	if err != nil {
		return "", err
	}
	result := gjson.ParseBytes(body)
	if !result.Get("success").Bool() {
		return "", fmt.Errorf("portal rejected write: %s", result.Get("error.message").String())
	}
	id := result.Get("id").String()
	if id == "" {
		// Some portal versions omit the id on create.
		if itemID != "" {
			id = itemID
		} else {
			id = uuid.NewString()
		}
	}
	logger.Debug("wrote document", "item", id)
	return id, nil
}

func (c *Client) SearchDocuments(ctx context.Context, query string) ([]ItemInfo, error) {
	params := url.Values{
		"q":   {query + ` type:"Web Map"`},
		"num": {"100"},
	}
	body, err := c.get(ctx, "/search", params)
	if err != nil {
		return nil, err
	}
	var items []ItemInfo
	for _, result := range gjson.GetBytes(body, "results").Array() {
		items = append(items, *itemFromJSON(result))
	}
	return items, nil
}

func itemFromJSON(v gjson.Result) *ItemInfo {
	info := &ItemInfo{
		ID:       v.Get("id").String(),
		Title:    v.Get("title").String(),
		Owner:    v.Get("owner").String(),
		Modified: v.Get("modified").Int(),
	}
	for _, tag := range v.Get("tags").Array() {
		info.Tags = append(info.Tags, tag.String())
	}
	return info
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("f", "json")
	if c.token != "" {
		params.Set("token", c.token)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+sharingPath+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, form url.Values) ([]byte, error) {
	if c.token != "" {
		form.Set("token", c.token)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sharingPath+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// do executes a request and maps both HTTP status codes and the
// portal's in-body error envelope (the portal reports most errors with
// status 200 and an error object) onto the remote error taxonomy.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	code := resp.StatusCode
	if errCode := gjson.GetBytes(body, "error.code"); errCode.Exists() {
		code = int(errCode.Int())
	}
	switch code {
	case http.StatusOK:
		return body, nil
	case http.StatusUnauthorized, 498, 499:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, portalMessage(body))
	case http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, portalMessage(body))
	case http.StatusNotFound, http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, portalMessage(body))
	case http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", ErrRemoteConflict, portalMessage(body))
	default:
		return nil, fmt.Errorf("portal error %d: %s", code, portalMessage(body))
	}
}

func portalMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error.message").String(); msg != "" {
		return msg
	}
	return "request failed"
}
