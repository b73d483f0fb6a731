// Package notify delivers sync run summaries to webhook and email routes.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dev-tams/newsdrop/internal/config"
)

const (
	StatusSuccess = "success"
	// StatusPartial is a successful run in which at least one source failed
	// to fetch.
	StatusPartial = "partial"
	StatusFailure = "failure"
)

// Event summarizes one sync run for every notifier implementation.
type Event struct {
	Status        string   `json:"status"`
	Store         string   `json:"store"`
	Folder        string   `json:"folder"`
	Date          string   `json:"date"`
	DryRun        bool     `json:"dry_run"`
	Uploaded      []string `json:"uploaded"`
	Deleted       []string `json:"deleted"`
	Skipped       []string `json:"skipped,omitempty"`
	FailedSources []string `json:"failed_sources,omitempty"`
	Duration      string   `json:"duration"`
	Error         string   `json:"error,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// statusSet is the set of statuses a route subscribes to.
type statusSet map[string]bool

type route struct {
	on       statusSet
	notifier Notifier
}

type Dispatcher struct {
	routes []route
}

func NewDispatcher(cfgs []config.NotificationConfig) (*Dispatcher, error) {
	routes := make([]route, 0, len(cfgs))
	for i, n := range cfgs {
		on, err := parseOn(n.On)
		if err != nil {
			return nil, fmt.Errorf("notifications[%d]: %w", i, err)
		}

		nf, err := newNotifier(n)
		if err != nil {
			return nil, fmt.Errorf("notifications[%d]: %w", i, err)
		}
		routes = append(routes, route{on: on, notifier: nf})
	}
	return &Dispatcher{routes: routes}, nil
}

func newNotifier(n config.NotificationConfig) (Notifier, error) {
	switch strings.ToLower(strings.TrimSpace(n.Type)) {
	case "webhook":
		nf, err := NewWebhook(n.Config.URL, n.Config.Headers)
		if err != nil {
			return nil, fmt.Errorf("webhook: %w", err)
		}
		return nf, nil
	case "email":
		nf, err := NewEmail(n.Config.SMTPHost, n.Config.SMTPPort, n.Config.From, n.Config.To, n.Config.Username, n.Config.Password)
		if err != nil {
			return nil, fmt.Errorf("email: %w", err)
		}
		return nf, nil
	default:
		return nil, fmt.Errorf("unsupported notification type %q", n.Type)
	}
}

// Notify sends event to every interested route and joins their errors.
func (d *Dispatcher) Notify(ctx context.Context, event Event) error {
	if d == nil || len(d.routes) == 0 {
		return nil
	}

	var errs []error
	for i, r := range d.routes {
		if !r.on[event.Status] {
			continue
		}
		if err := r.notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("notification route %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// parseOn accepts success, partial, failure and both. "failure" also
// subscribes to partial runs; "both" means every status.
func parseOn(raw []string) (statusSet, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("on must include success, partial, failure, or both")
	}

	on := statusSet{}
	for _, v := range raw {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case StatusSuccess:
			on[StatusSuccess] = true
		case StatusPartial:
			on[StatusPartial] = true
		case StatusFailure:
			on[StatusFailure] = true
			on[StatusPartial] = true
		case "both":
			on[StatusSuccess] = true
			on[StatusPartial] = true
			on[StatusFailure] = true
		default:
			return nil, fmt.Errorf("on contains unsupported value %q", v)
		}
	}
	return on, nil
}
