package octane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second
	PageSize       = 100
	MaxPages       = 100

	// FormTypeEdit selects the edit form among an entity's form layouts.
	FormTypeEdit = 2

	maxResponseSize = 50 * 1024 * 1024
)

// Config locates an Octane workspace.
type Config struct {
	Protocol    string
	Host        string
	Port        int
	SharedSpace string
	Workspace   string
	TechPreview bool
	Timeout     time.Duration
}

// BaseURL returns protocol://host[:port].
func (c Config) BaseURL() string {
	u := strings.ToLower(c.Protocol) + "://" + c.Host
	if c.Port != 0 {
		u += ":" + strconv.Itoa(c.Port)
	}
	return u
}

// Validate checks that the workspace is fully addressed.
func (c Config) Validate() error {
	var missing []string
	if c.Protocol == "" {
		missing = append(missing, "protocol")
	}
	if c.Host == "" {
		missing = append(missing, "host")
	}
	if c.SharedSpace == "" {
		missing = append(missing, "shared space")
	}
	if c.Workspace == "" {
		missing = append(missing, "workspace")
	}
	if len(missing) > 0 {
		return fmt.Errorf("octane configuration incomplete: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Client provides HTTP access to one Octane workspace. Authentication is a
// cookie session established by Authenticate.
type Client struct {
	BaseURL     string
	SharedSpace string
	Workspace   string
	TechPreview bool
	HTTPClient  *http.Client

	credsMu sync.RWMutex
	creds   Credentials
}

// NewClient creates a client for cfg. It does not contact the server.
func NewClient(cfg Config, creds Credentials) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:     strings.TrimSuffix(cfg.BaseURL(), "/"),
		SharedSpace: cfg.SharedSpace,
		Workspace:   cfg.Workspace,
		TechPreview: cfg.TechPreview,
		HTTPClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		creds: creds,
	}, nil
}

// WithHTTPClient returns a copy of the client using httpClient.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		BaseURL:     c.BaseURL,
		SharedSpace: c.SharedSpace,
		Workspace:   c.Workspace,
		TechPreview: c.TechPreview,
		HTTPClient:  httpClient,
		creds:       c.Credentials(),
	}
}

// Credentials returns the credentials used by the next Authenticate call.
func (c *Client) Credentials() Credentials {
	c.credsMu.RLock()
	defer c.credsMu.RUnlock()
	return c.creds
}

// SetCredentials replaces the credentials used by the next Authenticate call.
func (c *Client) SetCredentials(creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	c.credsMu.Lock()
	c.creds = creds
	c.credsMu.Unlock()
	return nil
}

// Authenticate signs in and stores the session cookie.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodPost, c.BaseURL+"/authentication/sign_in", c.Credentials().signInBody())
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	return nil
}

// collectionURL returns the workspace URL of a collection.
func (c *Client) collectionURL(collection string) string {
	return fmt.Sprintf("%s/api/shared_spaces/%s/workspaces/%s/%s",
		c.BaseURL, url.PathEscape(c.SharedSpace), url.PathEscape(c.Workspace), collection)
}

// GetEntity fetches one entity by id.
func (c *Client) GetEntity(ctx context.Context, collection, id string, fields []string) (Entity, error) {
	apiURL := c.collectionURL(collection) + "/" + url.PathEscape(id)
	if len(fields) > 0 {
		apiURL += "?" + url.Values{"fields": {strings.Join(fields, ",")}}.Encode()
	}

	body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", collection, id, err)
	}

	var e Entity
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", collection, err)
	}
	return e, nil
}

// ListEntities fetches one page of a collection.
func (c *Client) ListEntities(ctx context.Context, collection string, opts ListOptions) (*EntityList, error) {
	params := url.Values{}
	if !opts.Query.IsZero() {
		params.Set("query", `"`+opts.Query.String()+`"`)
	}
	if len(opts.Fields) > 0 {
		params.Set("fields", strings.Join(opts.Fields, ","))
	}
	if opts.TextSearch != nil {
		ts, err := json.Marshal(opts.TextSearch)
		if err != nil {
			return nil, fmt.Errorf("marshal text search: %w", err)
		}
		params.Set("text_search", string(ts))
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}

	apiURL := c.collectionURL(collection)
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	var list EntityList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("parse %s list: %w", collection, err)
	}
	return &list, nil
}

// ListAll fetches every entity of a collection matching opts, page by page.
// opts.Limit and opts.Offset are ignored.
func (c *Client) ListAll(ctx context.Context, collection string, opts ListOptions) ([]Entity, error) {
	var all []Entity
	opts.Limit = PageSize
	for page := 0; page < MaxPages; page++ {
		opts.Offset = page * PageSize
		list, err := c.ListEntities(ctx, collection, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, list.Data...)
		if len(list.Data) < PageSize || len(all) >= list.TotalCount {
			return all, nil
		}
	}
	return nil, fmt.Errorf("list %s: pagination limit exceeded after %d pages", collection, MaxPages)
}

// CreateEntity creates e in collection and returns the created entity.
func (c *Client) CreateEntity(ctx context.Context, collection string, e Entity) (Entity, error) {
	body, err := c.doRequest(ctx, http.MethodPost, c.collectionURL(collection), map[string][]Entity{"data": {e}})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", collection, err)
	}

	var created EntityList
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("parse create response: %w", err)
	}
	if len(created.Data) == 0 {
		return nil, fmt.Errorf("create %s: empty response", collection)
	}
	return created.Data[0], nil
}

// UpdateEntity updates the fields set in e on entity id.
func (c *Client) UpdateEntity(ctx context.Context, collection, id string, e Entity) (Entity, error) {
	body, err := c.doRequest(ctx, http.MethodPut, c.collectionURL(collection)+"/"+url.PathEscape(id), e)
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", collection, id, err)
	}

	updated := Entity{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &updated); err != nil {
			return nil, fmt.Errorf("parse update response: %w", err)
		}
	}
	if updated == nil {
		updated = Entity{}
	}
	if updated.ID() == "" {
		updated["id"] = id
	}
	return updated, nil
}

// FormLayouts returns the default form layouts of formType for an entity subtype.
func (c *Client) FormLayouts(ctx context.Context, subtype string, formType int) ([]FormLayout, error) {
	list, err := c.ListEntities(ctx, "form_layouts", ListOptions{
		Fields: []string{"body"},
		Query:  Field("entity_subtype").Equal(subtype).And(Field("is_default").EqualInt(formType)),
	})
	if err != nil {
		return nil, err
	}

	layouts := make([]FormLayout, 0, len(list.Data))
	for _, e := range list.Data {
		layout, err := decodeFormBody(e["body"])
		if err != nil {
			return nil, fmt.Errorf("form layout for %s: %w", subtype, err)
		}
		layouts = append(layouts, layout)
	}
	return layouts, nil
}

// decodeFormBody accepts the body either as an object or as a JSON string.
func decodeFormBody(v any) (FormLayout, error) {
	var layout FormLayout
	raw, err := json.Marshal(v)
	if err != nil {
		return layout, err
	}
	if s, ok := v.(string); ok {
		raw = []byte(s)
	}
	if err := json.Unmarshal(raw, &layout); err != nil {
		return layout, fmt.Errorf("parse form body: %w", err)
	}
	return layout, nil
}

// FieldMetadata returns the metadata of the named fields of an entity.
func (c *Client) FieldMetadata(ctx context.Context, entityName string, names []string) ([]FieldMetadata, error) {
	params := url.Values{
		"fields": {"name,label,field_type"},
		"query":  {`"` + Field("entity_name").Equal(entityName).And(Field("name").In(names)).String() + `"`},
	}
	apiURL := c.collectionURL("metadata/fields") + "?" + params.Encode()

	body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("field metadata for %s: %w", entityName, err)
	}

	var result struct {
		Data []FieldMetadata `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse field metadata: %w", err)
	}
	return result.Data, nil
}

// doRequest executes a request on the session and returns the response body.
// Non-2xx responses are returned as *APIError.
func (c *Client) doRequest(ctx context.Context, method, apiURL string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "octanebot/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.TechPreview {
		req.Header.Set("ALM-OCTANE-TECH-PREVIEW", "true")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
		_ = json.Unmarshal(respBody, apiErr)
		return nil, apiErr
	}

	return respBody, nil
}
