// Package module wires the sync service against the real providers
package module

import (
	"context"
	"time"

	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/adapters/auth"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/adapters/azdo"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/adapters/msgraph"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/adapters/rest"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/match"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/meetings"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/workitems"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/modkit"
	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	phttp "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/net/http"
	syncdom "github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/sync/domain"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/sync/service"
)

// Ports exposes the sync surface to other modules
type Ports struct {
	Sync   syncdom.SyncPort
	Writer *service.Writer
}

// Module implements the sync module
type Module struct {
	deps  modkit.Deps
	ports Ports
	svc   *service.Service
}

// calendarAdapter bridges the Graph client to the calendar port
type calendarAdapter struct {
	graph *msgraph.Client
}

func (a calendarAdapter) Events(ctx context.Context, userID string, from, to time.Time) ([]meetings.RawEvent, error) {
	evs, err := a.graph.CalendarEvents(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]meetings.RawEvent, 0, len(evs))
	for _, ev := range evs {
		raw := meetings.RawEvent{
			ID:        ev.ID,
			Subject:   ev.Subject,
			Start:     ev.Start.DateTime,
			StartZone: ev.Start.TimeZone,
			End:       ev.End.DateTime,
			EndZone:   ev.End.TimeZone,
			Cancelled: ev.IsCancelled,
			Online:    ev.IsOnline,
			Organizer: meetings.Person{
				Name:  ev.Organizer.EmailAddress.Name,
				Email: ev.Organizer.EmailAddress.Address,
			},
		}
		for _, at := range ev.Attendees {
			raw.Attendees = append(raw.Attendees, meetings.Person{
				Name:  at.EmailAddress.Name,
				Email: at.EmailAddress.Address,
			})
		}
		out = append(out, raw)
	}
	return out, nil
}

// workItemsAdapter bridges the azdo client to the work items port
type workItemsAdapter struct {
	azdo *azdo.Client
}

func (a workItemsAdapter) QueryIDs(ctx context.Context, wiql string, top int) ([]int, error) {
	return a.azdo.QueryWorkItemIDs(ctx, wiql, top)
}

func (a workItemsAdapter) Items(ctx context.Context, ids []int) ([]workitems.WorkItem, error) {
	return a.azdo.WorkItems(ctx, ids)
}

func (a workItemsAdapter) UpdateCompleted(ctx context.Context, id int, hours float64, comment string) (*workitems.WorkItem, error) {
	return a.azdo.UpdateCompletedWork(ctx, id, hours, comment)
}

func (a workItemsAdapter) Projects(ctx context.Context) ([]string, error) {
	return a.azdo.Projects(ctx)
}

// New wires credentials, clients, matcher, writer, and the orchestrator
// manual may be nil when the tracking module is not mounted
func New(deps modkit.Deps, manual syncdom.ManualPort) (*Module, error) {
	opts := FromConfig(deps.Cfg)

	graphCred := auth.NewClientCredentials(auth.ClientCredentialsOptions{
		ClientID:     opts.GraphClientID,
		ClientSecret: opts.GraphClientSecret,
		TenantID:     opts.GraphTenantID,
	})
	graph := msgraph.New(msgraph.Options{
		BaseURL: opts.GraphBaseURL,
		Auth:    graphCred,
	})

	boards := azdo.New(azdo.Options{
		BaseURL: opts.AzdoBaseURL,
		Project: opts.AzdoProject,
		Fanout:  opts.Workers,
		HTTP: rest.NewClient(rest.Options{
			BaseURL: opts.AzdoBaseURL,
			Auth:    auth.NewPAT(opts.AzdoPAT),
			MaxQPS:  opts.MaxQPS,
		}),
	})

	normalizer, err := meetings.NewNormalizer(opts.Timezone)
	if err != nil {
		return nil, err
	}

	matcher := match.NewMatcher(opts.MinSimilarity)
	for _, r := range opts.Rules {
		if err := matcher.AddRule(r); err != nil {
			return nil, perr.Wrapf(err, perr.CodeOf(err), "invalid match rule %q", r.Pattern)
		}
	}

	writer := service.NewWriter(workItemsAdapter{azdo: boards}, service.WriterOptions{
		DryRun:      opts.DryRun,
		Force:       opts.Force,
		StopOnError: opts.StopOnError,
	})

	svc := service.New(
		calendarAdapter{graph: graph},
		workItemsAdapter{azdo: boards},
		manual,
		writer,
		matcher,
		normalizer,
		service.Config{
			UserID:        opts.UserID,
			UserEmail:     opts.UserEmail,
			Timezone:      opts.Timezone,
			WindowDays:    opts.WindowDays,
			Strategy:      opts.Strategy,
			Workers:       opts.Workers,
			QueryTop:      opts.QueryTop,
			CandidateWIQL: azdo.CandidateWIQL,
		},
	)

	m := &Module{deps: deps, svc: svc}
	m.ports = Ports{Sync: svc, Writer: writer}
	return m, nil
}

// Name returns the module name
func (m *Module) Name() string { return "sync" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes mounts nothing; sync is driven by the CLI and the scheduler
func (m *Module) MountRoutes(phttp.Router) {}
