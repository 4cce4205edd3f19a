package scraper

const (
	tokyoGasLoginURL = "https://members.tokyo-gas.co.jp/kaiin/login.aspx"
	tokyoGasUsageURL = "https://members.tokyo-gas.co.jp/mytokyogas/mtgmenu/mieru/total.aspx"

	tokyoGasLogoutScript = `__doPostBack('main_0$lbLogoutMobile','');`
)

// TokyoGas is the my TOKYO GAS portal. It only has a monthly page.
func TokyoGas() *Portal {
	return &Portal{
		Name: "tokyogas",
		Login: LoginForm{
			URL:           tokyoGasLoginURL,
			Visits:        2,
			UsernameField: "main_2_txtLoginId",
			PasswordField: "main_2_txtPassword",
			SubmitControl: "main_2_btnSubmit",
			Confirm: func(q Query, snapshot string) bool {
				return len(q.SelectAll(snapshot, ".user-status")) > 0
			},
		},
		Logout: ScriptAction(tokyoGasLogoutScript),
		Routes: map[PageState][]Step{
			MonthlyView: {{To: MonthlyView, Do: NavigateAction(tokyoGasUsageURL), Ready: ".graph-list td"}},
		},
		Monthly: &ChartLabelExtractor{
			YearSelector:   ".box-date span",
			LabelSelector:  ".highcharts-xaxis-labels span",
			FigureSelector: ".graph-list td",
		},
	}
}
