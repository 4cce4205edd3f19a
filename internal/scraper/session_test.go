package scraper

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/meterscraper/pkg/models"
)

var testCreds = models.Credentials{Username: "alice", Password: "secret"}

// tepcoBrowser serves the TEPCO pages in response to the portal's actions
func tepcoBrowser() *fakeBrowser {
	fb := newFakeBrowser()
	fb.on["click idLogin"] = tepcoHomePage
	fb.on["navigate "+tepcoTopURL] = tepcoHomePage
	fb.on["script "+tepcoMonthlyScript] = tepcoMonthlyPage(filledMonthlyValues())
	fb.on["script "+tepcoHalfHourScript] = halfHourPage("2017/10/05", fortyEightValues())
	return fb
}

func openTEPCO(t *testing.T, fb *fakeBrowser) (*Session, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	s, err := Open(context.Background(), fb, TEPCO(), testCreds,
		WithSettler(FixedDelay{Delay: DefaultSettleDelay, Sleep: rec.sleep}))
	require.NoError(t, err)
	require.Equal(t, Authenticated, s.State())
	return s, rec
}

func TestOpen(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		fb := tepcoBrowser()
		s, rec := openTEPCO(t, fb)

		assert.Equal(t, []string{
			"navigate " + tepcoLoginURL,
			"fill idId=alice",
			"fill idPassword=secret",
			"click idLogin",
		}, fb.navigations())
		assert.Empty(t, rec.sleeps)

		s.Close(context.Background())
		assert.Equal(t, 1, fb.count("navigate "+tepcoLogoutURL))
		assert.Equal(t, 1, fb.closeCalls)
	})

	t.Run("rejected", func(t *testing.T) {
		fb := newFakeBrowser()
		fb.on["click idLogin"] = tepcoLoginPage

		s, err := Open(context.Background(), fb, TEPCO(), testCreds)
		require.ErrorIs(t, err, ErrLoginRejected)
		require.NotNil(t, s)
		assert.Equal(t, LoggedOut, s.State())

		// Nothing to log out of, but the browser must still be released
		s.Close(context.Background())
		assert.Zero(t, fb.count("navigate "+tepcoLogoutURL))
		assert.Equal(t, 1, fb.closeCalls)
	})

	t.Run("retry after rejection", func(t *testing.T) {
		fb := newFakeBrowser()
		fb.on["click idLogin"] = tepcoLoginPage

		s, err := Open(context.Background(), fb, TEPCO(), testCreds)
		require.ErrorIs(t, err, ErrLoginRejected)

		fb.on["click idLogin"] = tepcoHomePage
		require.NoError(t, s.Login(context.Background(), testCreds))
		assert.Equal(t, Authenticated, s.State())
	})

	t.Run("tokyo gas loads the login page twice", func(t *testing.T) {
		fb := newFakeBrowser()
		fb.on["click main_2_btnSubmit"] = `<html><body><div class="user-status">ようこそ</div></body></html>`

		s, err := Open(context.Background(), fb, TokyoGas(), testCreds)
		require.NoError(t, err)
		assert.Equal(t, Authenticated, s.State())
		assert.Equal(t, 2, fb.count("navigate "+tokyoGasLoginURL))

		s.Close(context.Background())
		assert.Equal(t, 1, fb.count("script "+tokyoGasLogoutScript))
	})

	t.Run("transport error", func(t *testing.T) {
		fb := newFakeBrowser()
		fb.fail["navigate "+tepcoLoginURL] = errors.New("net::ERR_NAME_NOT_RESOLVED")

		s, err := Open(context.Background(), fb, TEPCO(), testCreds)
		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.NotErrorIs(t, err, ErrLoginRejected)
		assert.Equal(t, LoggedOut, s.State())

		s.Close(context.Background())
		assert.Equal(t, 1, fb.closeCalls)
	})
}

func TestLoginAfterClose(t *testing.T) {
	fb := tepcoBrowser()
	s, _ := openTEPCO(t, fb)
	s.Close(context.Background())

	err := s.Login(context.Background(), testCreds)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestFetchWhileLoggedOut(t *testing.T) {
	fb := tepcoBrowser()
	s := New(fb, TEPCO())

	_, err := s.FetchMonthly(context.Background())
	assert.ErrorIs(t, err, ErrNavigationUnavailable)

	_, err = s.FetchHalfHour(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNavigationUnavailable)

	_, err = s.FetchHalfHour(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNavigationUnavailable)

	_, err = s.Snapshot(context.Background(), MonthlyView)
	assert.ErrorIs(t, err, ErrNavigationUnavailable)

	assert.Empty(t, fb.calls, "no browser action may run while logged out")
}

func TestClose(t *testing.T) {
	t.Run("twice", func(t *testing.T) {
		fb := tepcoBrowser()
		s, _ := openTEPCO(t, fb)

		s.Close(context.Background())
		assert.Equal(t, LoggedOut, s.State())
		s.Close(context.Background())
		assert.Equal(t, LoggedOut, s.State())

		assert.Equal(t, 1, fb.count("navigate "+tepcoLogoutURL))
		assert.Equal(t, 1, fb.closeCalls)
	})

	t.Run("logout failure still releases", func(t *testing.T) {
		fb := tepcoBrowser()
		s, _ := openTEPCO(t, fb)
		fb.fail["navigate "+tepcoLogoutURL] = errors.New("timeout")

		s.Close(context.Background())
		assert.Equal(t, LoggedOut, s.State())
		assert.Equal(t, 1, fb.closeCalls)
	})

	t.Run("fetch after close", func(t *testing.T) {
		fb := tepcoBrowser()
		s, _ := openTEPCO(t, fb)
		s.Close(context.Background())
		before := len(fb.calls)

		_, err := s.FetchMonthly(context.Background())
		assert.ErrorIs(t, err, ErrNavigationUnavailable)
		assert.Len(t, fb.calls, before)
	})
}

func TestFetchMonthly(t *testing.T) {
	fb := tepcoBrowser()
	s, rec := openTEPCO(t, fb)
	loginCalls := len(fb.navigations())

	report, err := s.FetchMonthly(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Monthly, 24)
	assert.Equal(t, MonthlyView, s.State())

	assert.Equal(t, []string{
		"navigate " + tepcoTopURL,
		"script " + tepcoMonthlyScript,
	}, fb.navigations()[loginCalls:])
	assert.Equal(t, []time.Duration{DefaultSettleDelay}, rec.sleeps)

	// Already on the page: read it again without navigating
	_, err = s.FetchMonthly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fb.count("script "+tepcoMonthlyScript))
	assert.Len(t, rec.sleeps, 1)
}

func TestFetchMonthlyExtractionFailure(t *testing.T) {
	fb := tepcoBrowser()
	fb.on["script "+tepcoMonthlyScript] = "<html><body><p>メンテナンス中</p></body></html>"
	s, _ := openTEPCO(t, fb)

	report, err := s.FetchMonthly(context.Background())
	require.ErrorIs(t, err, ErrExtractionFailed)
	assert.Nil(t, report)

	// The session stays usable
	assert.Equal(t, MonthlyView, s.State())
	_, err = s.FetchHalfHour(context.Background(), 0)
	require.NoError(t, err)
}

func TestFetchHalfHour(t *testing.T) {
	t.Run("today", func(t *testing.T) {
		fb := tepcoBrowser()
		s, rec := openTEPCO(t, fb)
		loginCalls := len(fb.navigations())

		usage, err := s.FetchHalfHour(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, "2017/10/05", usage.Day)
		require.Len(t, usage.Intervals, 48)
		assert.True(t, usage.Complete())
		assert.Equal(t, 0.0, usage.Intervals[0])
		assert.Equal(t, 0.3, usage.Intervals[13])

		assert.Equal(t, []string{
			"navigate " + tepcoTopURL,
			"script " + tepcoMonthlyScript,
			"script " + tepcoHalfHourScript,
		}, fb.navigations()[loginCalls:])
		assert.Equal(t, []time.Duration{DefaultSettleDelay, DefaultSettleDelay}, rec.sleeps)
		assert.Equal(t, HalfHourView, s.State())
	})

	t.Run("steps back n days", func(t *testing.T) {
		fb := tepcoBrowser()
		s, rec := openTEPCO(t, fb)

		_, err := s.FetchHalfHour(context.Background(), 2)
		require.NoError(t, err)
		assert.Equal(t, 2, fb.count("click doPrevious"))
		assert.Equal(t, 2, s.DayOffset())
		// Two route steps plus one wait per day stepped
		assert.Len(t, rec.sleeps, 4)
	})

	t.Run("zero reopens the graph", func(t *testing.T) {
		fb := tepcoBrowser()
		s, _ := openTEPCO(t, fb)

		_, err := s.FetchHalfHour(context.Background(), 2)
		require.NoError(t, err)
		_, err = s.FetchHalfHour(context.Background(), 0)
		require.NoError(t, err)

		assert.Equal(t, 2, fb.count("script "+tepcoHalfHourScript))
		assert.Equal(t, 0, s.DayOffset())
	})

	t.Run("continues from the day on screen", func(t *testing.T) {
		fb := tepcoBrowser()
		s, _ := openTEPCO(t, fb)

		_, err := s.FetchHalfHour(context.Background(), 1)
		require.NoError(t, err)
		_, err = s.FetchHalfHour(context.Background(), 1)
		require.NoError(t, err)

		assert.Equal(t, 1, fb.count("script "+tepcoHalfHourScript))
		assert.Equal(t, 2, fb.count("click doPrevious"))
		assert.Equal(t, 2, s.DayOffset())
	})

	t.Run("leaving the view discards the offset", func(t *testing.T) {
		fb := tepcoBrowser()
		s, _ := openTEPCO(t, fb)

		_, err := s.FetchHalfHour(context.Background(), 3)
		require.NoError(t, err)
		_, err = s.FetchMonthly(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, s.DayOffset())

		_, err = s.FetchHalfHour(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, 2, fb.count("script "+tepcoHalfHourScript))
		assert.Equal(t, 1, s.DayOffset())
	})

	t.Run("negative", func(t *testing.T) {
		fb := tepcoBrowser()
		s, _ := openTEPCO(t, fb)
		before := len(fb.calls)

		_, err := s.FetchHalfHour(context.Background(), -1)
		require.Error(t, err)
		assert.Len(t, fb.calls, before)
	})

	t.Run("unsupported portal", func(t *testing.T) {
		fb := newFakeBrowser()
		fb.on["click main_2_btnSubmit"] = `<html><body><div class="user-status"></div></body></html>`
		s, err := Open(context.Background(), fb, TokyoGas(), testCreds)
		require.NoError(t, err)
		before := len(fb.calls)

		_, err = s.FetchHalfHour(context.Background(), 0)
		assert.ErrorIs(t, err, ErrNavigationUnavailable)
		assert.Len(t, fb.calls, before)
	})

	t.Run("transport error on step", func(t *testing.T) {
		fb := tepcoBrowser()
		s, _ := openTEPCO(t, fb)
		fb.fail["click doPrevious"] = errors.New("context deadline exceeded")

		_, err := s.FetchHalfHour(context.Background(), 1)
		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "stepping to previous day", te.Op)

		s.Close(context.Background())
		assert.Equal(t, 1, fb.closeCalls)
	})
}

func TestEnsurePageTransitionFailure(t *testing.T) {
	fb := tepcoBrowser()
	s, _ := openTEPCO(t, fb)
	fb.fail["script "+tepcoHalfHourScript] = errors.New("ReferenceError: fnjdoc is not defined")

	err := s.ensurePage(context.Background(), HalfHourView, false)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	// The monthly step succeeded, the half-hour one did not
	assert.Equal(t, MonthlyView, s.State())
}

func TestWaitReady(t *testing.T) {
	fb := tepcoBrowser()
	rec := &sleepRecorder{}
	settler := WaitReady{Poll: time.Second, Timeout: 5 * time.Second, Fallback: 2 * time.Second, Sleep: rec.sleep}

	s, err := Open(context.Background(), fb, TEPCO(), testCreds, WithSettler(settler))
	require.NoError(t, err)

	// The monthly table is already rendered when the first poll runs
	_, err = s.FetchMonthly(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rec.sleeps)

	t.Run("no ready selector uses fallback", func(t *testing.T) {
		require.NoError(t, settler.Settle(context.Background(), fb, HTMLQuery{}, ""))
		assert.Equal(t, []time.Duration{2 * time.Second}, rec.sleeps)
	})

	t.Run("gives up after timeout", func(t *testing.T) {
		rec.sleeps = nil
		require.NoError(t, settler.Settle(context.Background(), fb, HTMLQuery{}, ".never-rendered"))
		assert.Len(t, rec.sleeps, 5)
	})
}

func TestSnapshot(t *testing.T) {
	fb := tepcoBrowser()
	s, _ := openTEPCO(t, fb)

	html, err := s.Snapshot(context.Background(), HalfHourView)
	require.NoError(t, err)
	assert.Contains(t, html, "vbar_usage_grp")
	assert.Equal(t, HalfHourView, s.State())
}

func TestPageState(t *testing.T) {
	for _, p := range []PageState{LoggedOut, Authenticated, MonthlyView, HalfHourView} {
		parsed, err := ParsePageState(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
	_, err := ParsePageState("weekly")
	assert.Error(t, err)
}

func TestPortalByName(t *testing.T) {
	p, err := PortalByName("TEPCO")
	require.NoError(t, err)
	assert.True(t, p.Supports(HalfHourView))

	p, err = PortalByName("tokyogas")
	require.NoError(t, err)
	assert.True(t, p.Supports(MonthlyView))
	assert.False(t, p.Supports(HalfHourView))

	_, err = PortalByName("kepco")
	assert.Error(t, err)
	assert.Equal(t, []string{"tepco", "tokyogas"}, PortalNames())
}

func TestEnsurePageHomeFailure(t *testing.T) {
	fb := tepcoBrowser()
	s, _ := openTEPCO(t, fb)
	_, err := s.FetchHalfHour(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, HalfHourView, s.State())

	fb.fail["navigate "+tepcoTopURL] = errors.New("timeout")
	_, err = s.FetchMonthly(context.Background())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, Authenticated, s.State())

	// The next half-hour fetch walks the route again instead of stepping back
	delete(fb.fail, "navigate "+tepcoTopURL)
	before := len(fb.calls)
	usage, err := s.FetchHalfHour(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "navigate "+tepcoTopURL, fb.calls[before])
	assert.Equal(t, 1, s.DayOffset())
	assert.Equal(t, "2017/10/05", usage.Day)
}

func TestLoginWithoutConfirm(t *testing.T) {
	fb := tepcoBrowser()
	portal := TEPCO()
	portal.Login.Confirm = nil

	s, err := Open(context.Background(), fb, portal, testCreds)
	require.ErrorIs(t, err, ErrLoginRejected)
	assert.Equal(t, LoggedOut, s.State())
	assert.Empty(t, fb.calls)

	s.Close(context.Background())
	assert.Equal(t, 1, fb.closeCalls)
}

func TestRejectedLoginDoesNotLogCredentials(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	fb := newFakeBrowser()
	fb.on["click idLogin"] = tepcoLoginPage
	s, err := Open(context.Background(), fb, TEPCO(), testCreds)
	require.ErrorIs(t, err, ErrLoginRejected)
	s.Close(context.Background())

	assert.Contains(t, buf.String(), "login rejected")
	assert.NotContains(t, buf.String(), testCreds.Username)
	assert.NotContains(t, buf.String(), testCreds.Password)
}
