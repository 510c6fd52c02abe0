// Package azdo wraps the Azure DevOps work item tracking API
package azdo

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/adapters/rest"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/workitems"
	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/logger"
)

const (
	// apiVersion is pinned; the provider changes payload shapes between versions
	apiVersion = "7.1"

	// defaultQueryTop caps WIQL results when the caller does not
	defaultQueryTop = 200

	// batchSize is the provider's maximum ids per work item read
	batchSize = 200

	// defaultFanout bounds concurrent batch reads
	defaultFanout = 4
)

// CandidateWIQL selects the open items considered during reconciliation
const CandidateWIQL = "SELECT [System.Id], [System.Title], [System.State], " +
	"[System.AssignedTo], [System.WorkItemType] FROM WorkItems " +
	"WHERE [System.State] NOT IN ('Removed', 'Closed')"

// Client talks to one organisation and project
type Client struct {
	rest    *rest.Client
	log     logger.Logger
	project string
	fanout  int
}

// Options configures a Client
// BaseURL is the organisation root, e.g. https://dev.azure.com/myorg
type Options struct {
	BaseURL string
	Project string
	Fanout  int
	Auth    rest.Credential
	HTTP    *rest.Client
}

// New builds a work item client; HTTP overrides the internally built rest client
func New(o Options) *Client {
	if o.Fanout <= 0 {
		o.Fanout = defaultFanout
	}
	rc := o.HTTP
	if rc == nil {
		rc = rest.NewClient(rest.Options{BaseURL: o.BaseURL, Auth: o.Auth})
	}
	return &Client{rest: rc, log: *logger.Named("azdo"), project: o.Project, fanout: o.Fanout}
}

func versioned(extra url.Values) url.Values {
	q := url.Values{"api-version": {apiVersion}}
	for k, vs := range extra {
		q[k] = vs
	}
	return q
}

// WorkItem reads one item; fields defaults to the reconciliation read set
func (c *Client) WorkItem(ctx context.Context, id int, fields ...string) (*workitems.WorkItem, error) {
	if id <= 0 {
		return nil, perr.InvalidInputf("work item id must be positive, got %d", id)
	}
	if len(fields) == 0 {
		fields = workitems.DefaultFields
	}
	q := versioned(url.Values{"fields": {strings.Join(fields, ",")}})

	var wi wireItem
	if err := c.rest.GetJSON(ctx, fmt.Sprintf("/_apis/wit/workitems/%d", id), q, &wi); err != nil {
		return nil, err
	}
	item := wi.toDomain(c.project)
	return &item, nil
}

// WorkItems reads many items in provider-sized batches fetched concurrently
// results come back sorted by id regardless of batch completion order
func (c *Client) WorkItems(ctx context.Context, ids []int) ([]workitems.WorkItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var chunks [][]int
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}

	var (
		mu  sync.Mutex
		all []workitems.WorkItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanout)
	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			parts := make([]string, len(chunk))
			for i, id := range chunk {
				parts[i] = strconv.Itoa(id)
			}
			q := versioned(url.Values{
				"ids":    {strings.Join(parts, ",")},
				"fields": {strings.Join(workitems.DefaultFields, ",")},
			})
			var batch wireBatch
			if err := c.rest.GetJSON(gctx, "/_apis/wit/workitems", q, &batch); err != nil {
				return err
			}
			mu.Lock()
			for _, wi := range batch.Value {
				all = append(all, wi.toDomain(c.project))
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

// QueryWorkItemIDs runs a WIQL query scoped to the client project
func (c *Client) QueryWorkItemIDs(ctx context.Context, wiql string, top int) ([]int, error) {
	if strings.TrimSpace(wiql) == "" {
		return nil, perr.MissingFieldf("wiql query is required")
	}
	if top <= 0 {
		top = defaultQueryTop
	}
	q := versioned(url.Values{"$top": {strconv.Itoa(top)}})

	var resp wiqlResponse
	body := map[string]string{"query": wiql}
	path := "/" + url.PathEscape(c.project) + "/_apis/wit/wiql"
	if err := c.rest.PostJSON(ctx, path, q, body, &resp); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(resp.WorkItems))
	for _, wi := range resp.WorkItems {
		ids = append(ids, wi.ID)
	}
	c.log.Debug().Int("ids", len(ids)).Msg("wiql query resolved")
	return ids, nil
}

// UpdateWorkItem applies a JSON Patch document to one item
func (c *Client) UpdateWorkItem(ctx context.Context, id int, ops []PatchOp) (*workitems.WorkItem, error) {
	if id <= 0 {
		return nil, perr.InvalidInputf("work item id must be positive, got %d", id)
	}
	if len(ops) == 0 {
		return nil, perr.InvalidInputf("patch for work item %d has no operations", id)
	}

	var wi wireItem
	path := fmt.Sprintf("/_apis/wit/workitems/%d", id)
	if err := c.rest.PatchJSON(ctx, path, versioned(nil), ops, &wi); err != nil {
		return nil, err
	}
	item := wi.toDomain(c.project)
	return &item, nil
}

// UpdateCompletedWork writes completed hours plus an audit comment in one patch
func (c *Client) UpdateCompletedWork(ctx context.Context, id int, hours float64, comment string) (*workitems.WorkItem, error) {
	ops := []PatchOp{AddField(workitems.FieldCompletedWork, hours)}
	if comment != "" {
		ops = append(ops, AddField(workitems.FieldHistory, comment))
	}
	return c.UpdateWorkItem(ctx, id, ops)
}

// Projects lists project names visible to the credential
// an empty successful response still proves the credential can read the org,
// which is what the permission probe needs
func (c *Client) Projects(ctx context.Context) ([]string, error) {
	var pl projectList
	if err := c.rest.GetJSON(ctx, "/_apis/projects", versioned(nil), &pl); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(pl.Value))
	for _, p := range pl.Value {
		names = append(names, p.Name)
	}
	return names, nil
}
