package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jgoulah/meterscraper/pkg/models"
)

// Session is a logged-in browser session on one portal. It tracks which page
// the browser is on and navigates only as far as each fetch needs.
//
// A Session is not safe for concurrent use: every call drives the same tab.
type Session struct {
	browser Browser
	portal  *Portal
	query   Query
	settler Settler

	state     PageState
	dayOffset int
	closed    bool
}

// Option configures a Session
type Option func(*Session)

// WithQuery replaces the HTML query adapter
func WithQuery(q Query) Option {
	return func(s *Session) { s.query = q }
}

// WithSettler replaces the wait used after each navigation step
func WithSettler(st Settler) Option {
	return func(s *Session) { s.settler = st }
}

// New creates a logged-out session. The session owns b and releases it on
// Close.
func New(b Browser, p *Portal, opts ...Option) *Session {
	s := &Session{
		browser: b,
		portal:  p,
		query:   HTMLQuery{},
		settler: FixedDelay{Delay: DefaultSettleDelay},
		state:   LoggedOut,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a session and logs in. When the portal rejects the
// credentials the session is returned along with ErrLoginRejected; it can
// retry Login and must still be closed.
func Open(ctx context.Context, b Browser, p *Portal, creds models.Credentials, opts ...Option) (*Session, error) {
	s := New(b, p, opts...)
	if err := s.Login(ctx, creds); err != nil {
		return s, err
	}
	return s, nil
}

// State returns the page the session is on
func (s *Session) State() PageState {
	return s.state
}

// Portal returns the portal definition the session drives
func (s *Session) Portal() *Portal {
	return s.portal
}

// DayOffset returns how many days the half-hour graph has been stepped back
// since it was last opened
func (s *Session) DayOffset() int {
	return s.dayOffset
}

// Login submits the portal's login form. A wrong username or password
// gives ErrLoginRejected and leaves the session logged out; browser
// failures give a *TransportError.
func (s *Session) Login(ctx context.Context, creds models.Credentials) error {
	if s.closed {
		return ErrSessionClosed
	}
	s.state = LoggedOut

	form := s.portal.Login
	if form.Confirm == nil {
		return fmt.Errorf("%w: %s has no way to confirm a login", ErrLoginRejected, s.portal.Name)
	}
	visits := form.Visits
	if visits < 1 {
		visits = 1
	}

	slog.DebugContext(ctx, "logging in", "portal", s.portal.Name, "url", form.URL)
	for i := 0; i < visits; i++ {
		if err := s.browser.Navigate(ctx, form.URL); err != nil {
			return transport("navigating to login", err)
		}
	}
	if err := s.browser.Fill(ctx, form.UsernameField, creds.Username); err != nil {
		return transport("filling username", err)
	}
	if err := s.browser.Fill(ctx, form.PasswordField, creds.Password); err != nil {
		return transport("filling password", err)
	}
	if err := s.browser.Click(ctx, form.SubmitControl); err != nil {
		return transport("submitting login form", err)
	}

	snapshot, err := s.browser.Snapshot(ctx)
	if err != nil {
		return transport("reading login result", err)
	}
	if !form.Confirm(s.query, snapshot) {
		slog.WarnContext(ctx, "login rejected", "portal", s.portal.Name)
		return fmt.Errorf("%w: %s did not show its member page", ErrLoginRejected, s.portal.Name)
	}

	s.state = Authenticated
	slog.InfoContext(ctx, "logged in", "portal", s.portal.Name)
	return nil
}

// Close logs out if needed and releases the browser. Logout is best effort:
// its failures are logged and the browser is released regardless. Calling
// Close again does nothing.
func (s *Session) Close(ctx context.Context) {
	if s.closed {
		return
	}
	s.closed = true

	if s.state != LoggedOut && s.portal.Logout != nil {
		if err := s.portal.Logout(ctx, s.browser); err != nil {
			slog.WarnContext(ctx, "logout failed", "portal", s.portal.Name, "err", err)
		}
	}
	s.state = LoggedOut
	s.dayOffset = 0

	if err := s.browser.Close(); err != nil {
		slog.WarnContext(ctx, "releasing browser", "portal", s.portal.Name, "err", err)
	}
}

// ensurePage moves the browser to target. It does nothing if the session is
// already there, unless force is set. Routes always restart from the
// logged-in landing page.
func (s *Session) ensurePage(ctx context.Context, target PageState, force bool) error {
	if s.state == LoggedOut {
		return fmt.Errorf("%w: not logged in to %s", ErrNavigationUnavailable, s.portal.Name)
	}
	if s.state == target && !force {
		return nil
	}
	if !s.portal.Supports(target) {
		return fmt.Errorf("%w: %s has no %s page", ErrNavigationUnavailable, s.portal.Name, target)
	}

	// Leaving the current page invalidates it even if Home fails
	s.state = Authenticated
	s.dayOffset = 0
	if s.portal.Home != nil {
		if err := s.portal.Home(ctx, s.browser); err != nil {
			return transport("returning to top page", err)
		}
	}

	for _, step := range s.portal.Routes[target] {
		slog.DebugContext(ctx, "navigating", "portal", s.portal.Name, "from", s.state, "to", step.To)
		if err := step.Do(ctx, s.browser); err != nil {
			return transport(fmt.Sprintf("navigating to %s page", step.To), err)
		}
		if err := s.settler.Settle(ctx, s.browser, s.query, step.Ready); err != nil {
			return transport(fmt.Sprintf("waiting for %s page", step.To), err)
		}
		s.state = step.To
	}

	return nil
}

// FetchMonthly reads the monthly usage page
func (s *Session) FetchMonthly(ctx context.Context) (*models.MonthlyReport, error) {
	if err := s.ensurePage(ctx, MonthlyView, false); err != nil {
		return nil, err
	}
	if s.portal.Monthly == nil {
		return nil, fmt.Errorf("%w: %s has no monthly extractor", ErrNavigationUnavailable, s.portal.Name)
	}

	snapshot, err := s.browser.Snapshot(ctx)
	if err != nil {
		return nil, transport("reading monthly page", err)
	}

	records, err := s.portal.Monthly.ExtractMonthly(s.query, snapshot)
	if err != nil {
		return nil, fmt.Errorf("%s monthly page: %w", s.portal.Name, err)
	}
	return &models.MonthlyReport{Monthly: records}, nil
}

// FetchHalfHour reads the half-hour graph for the day `previous` days
// before the one currently shown. Asking for 0, or arriving from another
// page, reopens the graph so it starts from today; otherwise steps continue
// from the day already on screen.
func (s *Session) FetchHalfHour(ctx context.Context, previous int) (*models.HalfHourUsage, error) {
	if previous < 0 {
		return nil, fmt.Errorf("previous days must not be negative: %d", previous)
	}
	if s.state == LoggedOut {
		return nil, fmt.Errorf("%w: not logged in to %s", ErrNavigationUnavailable, s.portal.Name)
	}
	if s.portal.HalfHour == nil || !s.portal.Supports(HalfHourView) {
		return nil, fmt.Errorf("%w: %s has no half-hour page", ErrNavigationUnavailable, s.portal.Name)
	}

	force := s.state != HalfHourView || previous == 0
	if err := s.ensurePage(ctx, HalfHourView, force); err != nil {
		return nil, err
	}

	// Each step re-renders the one shared page, so they run strictly in order
	for i := 0; i < previous; i++ {
		if err := s.browser.Click(ctx, s.portal.PreviousDayControl); err != nil {
			return nil, transport("stepping to previous day", err)
		}
		if err := s.settler.Settle(ctx, s.browser, s.query, ""); err != nil {
			return nil, transport("waiting for previous day", err)
		}
		s.dayOffset++
	}

	snapshot, err := s.browser.Snapshot(ctx)
	if err != nil {
		return nil, transport("reading half-hour page", err)
	}

	usage, err := s.portal.HalfHour.Extract(s.query, snapshot)
	if err != nil {
		return nil, fmt.Errorf("%s half-hour page: %w", s.portal.Name, err)
	}
	slog.DebugContext(ctx, "read half-hour usage", "portal", s.portal.Name, "day", usage.Day, "offset", s.dayOffset, "slots", len(usage.Intervals))
	return usage, nil
}

// Snapshot navigates to target and returns the rendered page, for
// inspecting layout changes
func (s *Session) Snapshot(ctx context.Context, target PageState) (string, error) {
	if err := s.ensurePage(ctx, target, false); err != nil {
		return "", err
	}

	snapshot, err := s.browser.Snapshot(ctx)
	if err != nil {
		return "", transport("reading page", err)
	}
	return snapshot, nil
}
