package octane

import (
	"context"
	"fmt"
)

// SearchLimit caps the results of a global text search.
const SearchLimit = 25

// ListNodes returns every list node of the workspace.
func (c *Client) ListNodes(ctx context.Context) ([]Entity, error) {
	return c.ListAll(ctx, "list_nodes", ListOptions{Fields: []string{"id", "name", "logical_name"}})
}

// Phases returns every phase of the workspace.
func (c *Client) Phases(ctx context.Context) ([]Entity, error) {
	return c.ListAll(ctx, "phases", ListOptions{Fields: []string{"id", "name", "logical_name"}})
}

// BacklogRoot returns the work item every backlog item hangs from when no
// parent is given.
func (c *Client) BacklogRoot(ctx context.Context) (Entity, error) {
	list, err := c.ListEntities(ctx, "work_items", ListOptions{
		Query: Field("subtype").Equal("work_item_root"),
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(list.Data) == 0 {
		return nil, fmt.Errorf("backlog root not found")
	}
	return list.Data[0], nil
}

// WorkItem looks up a work item of any subtype by id. It returns nil without
// error when no such item exists.
func (c *Client) WorkItem(ctx context.Context, id string) (Entity, error) {
	list, err := c.ListEntities(ctx, "work_items", ListOptions{
		Query: Field("id").Equal(id),
	})
	if err != nil {
		return nil, err
	}
	if len(list.Data) == 0 {
		return nil, nil
	}
	return list.Data[0], nil
}

// Search runs a global text search over the work items of subtype st,
// returning at most SearchLimit results. TotalCount reports every match.
func (c *Client) Search(ctx context.Context, st Subtype, text string) (*EntityList, error) {
	return c.ListEntities(ctx, "work_items", ListOptions{
		Query:      Field("subtype").Equal(st.APIName()),
		TextSearch: &TextSearch{Type: "global", Text: text},
		Limit:      SearchLimit,
	})
}

// SearchSummary returns the highlighted name of a search hit, falling back to
// the plain name.
func SearchSummary(e Entity) string {
	if hit, ok := e.Ref("global_text_search_result"); ok {
		if name := hit.Name(); name != "" {
			return name
		}
	}
	return e.Name()
}
