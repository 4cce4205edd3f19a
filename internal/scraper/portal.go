package scraper

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// PageState is the logical page a session is on
type PageState int

const (
	LoggedOut PageState = iota
	Authenticated
	MonthlyView
	HalfHourView
)

func (p PageState) String() string {
	switch p {
	case LoggedOut:
		return "logged-out"
	case Authenticated:
		return "authenticated"
	case MonthlyView:
		return "monthly"
	case HalfHourView:
		return "half-hour"
	default:
		return fmt.Sprintf("PageState(%d)", int(p))
	}
}

// ParsePageState is the inverse of String
func ParsePageState(s string) (PageState, error) {
	for _, p := range []PageState{LoggedOut, Authenticated, MonthlyView, HalfHourView} {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return LoggedOut, fmt.Errorf("unknown page: %s", s)
}

// Action is one command issued against the browser
type Action func(ctx context.Context, b Browser) error

// NavigateAction loads url
func NavigateAction(url string) Action {
	return func(ctx context.Context, b Browser) error {
		return b.Navigate(ctx, url)
	}
}

// ScriptAction evaluates a script on the current page
func ScriptAction(expression string) Action {
	return func(ctx context.Context, b Browser) error {
		return b.RunScript(ctx, expression)
	}
}

// ClickAction clicks the element with the given id
func ClickAction(controlID string) Action {
	return func(ctx context.Context, b Browser) error {
		return b.Click(ctx, controlID)
	}
}

// Step is one edge of a portal's transition table
type Step struct {
	To PageState
	Do Action
	// Ready is a selector that only matches once the destination page has
	// rendered. Used by WaitReady; empty means there is no reliable marker.
	Ready string
}

// LoginForm describes how to sign in to a portal
type LoginForm struct {
	URL           string
	Visits        int // Some portals only render the form after a second load
	UsernameField string
	PasswordField string
	SubmitControl string
	// Confirm reports whether the snapshot taken after submitting shows a
	// logged-in page
	Confirm func(q Query, snapshot string) bool
}

// Portal is everything the session needs to know about one website
type Portal struct {
	Name   string
	Login  LoginForm
	Logout Action
	// Home returns the browser to the logged-in landing page. Nil when the
	// routes start from absolute URLs anyway.
	Home Action
	// Routes lists, per destination, the steps to take from Authenticated
	Routes map[PageState][]Step

	Monthly  MonthlyExtractor
	HalfHour *HalfHourExtractor // Nil if the portal has no half-hour graph
	// PreviousDayControl is the id of the "previous day" button on the
	// half-hour page
	PreviousDayControl string
}

// Supports reports whether the portal has a route to target
func (p *Portal) Supports(target PageState) bool {
	if target == Authenticated {
		return true
	}
	_, ok := p.Routes[target]
	return ok
}

var portals = map[string]func() *Portal{
	"tepco":    TEPCO,
	"tokyogas": TokyoGas,
}

// PortalByName returns a fresh definition of the named portal
func PortalByName(name string) (*Portal, error) {
	build, ok := portals[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown portal: %s (available: %s)", name, strings.Join(PortalNames(), ", "))
	}
	return build(), nil
}

// PortalNames lists the known portals
func PortalNames() []string {
	names := make([]string, 0, len(portals))
	for name := range portals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
