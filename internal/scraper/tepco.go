package scraper

import "strings"

const (
	tepcoLoginURL  = "https://www.kakeibo.tepco.co.jp/dk/aut/login/"
	tepcoLogoutURL = "https://www.kakeibo.tepco.co.jp/dk/doLogout"
	tepcoTopURL    = "https://www.kakeibo.tepco.co.jp/dk/com/menu/"

	tepcoHomeTitle = "でんき家計簿　会員ホーム"

	// Menu actions are form posts triggered through the page's own helper
	tepcoMonthlyScript  = `submitForm(fnjdoc.forms['com_menuActionForm'], '/dk/com/menu/goElectricUsageAmount', null);`
	tepcoHalfHourScript = `submitForm(fnjdoc.forms['syo_electricUsageAmountActionForm'], '/dk/syo/electricUsageAmount/goElectricUsage30minGraph', null);`
)

// TEPCO is the でんき家計簿 electricity portal
func TEPCO() *Portal {
	monthly := Step{To: MonthlyView, Do: ScriptAction(tepcoMonthlyScript), Ready: ".view_table td"}
	halfHour := Step{To: HalfHourView, Do: ScriptAction(tepcoHalfHourScript), Ready: ".graph_head_table td"}

	return &Portal{
		Name: "tepco",
		Login: LoginForm{
			URL:           tepcoLoginURL,
			Visits:        1,
			UsernameField: "idId",
			PasswordField: "idPassword",
			SubmitControl: "idLogin",
			Confirm: func(q Query, snapshot string) bool {
				titles := q.SelectAll(snapshot, "title")
				return len(titles) > 0 && strings.TrimSpace(titles[0]) == tepcoHomeTitle
			},
		},
		Logout: NavigateAction(tepcoLogoutURL),
		Home:   NavigateAction(tepcoTopURL),
		// The half-hour graph is only linked from the monthly page, so both
		// routes go through it
		Routes: map[PageState][]Step{
			MonthlyView:  {monthly},
			HalfHourView: {monthly, halfHour},
		},
		Monthly: &GridExtractor{
			HeaderSelector: ".view_table th",
			CellSelector:   ".view_table td",
			HeaderSkip:     []int{0, 13},
			CellSkip:       []int{0, 13, 26, 39, 52, 65},
			MonthsPerBlock: 12,
		},
		HalfHour: &HalfHourExtractor{
			DateSelector: ".graph_head_table td",
			DateIndex:    1,
			ScriptMarker: "vbar_usage_grp",
			SeriesLabel:  "日次",
		},
		PreviousDayControl: "doPrevious",
	}
}
