package redeem

import "time"

// Selectors locate the parts of the redemption page. Values use Playwright
// selector syntax; an "xpath=" prefix selects by XPath.
type Selectors struct {
	// Input fallbacks, highest priority first.
	InputPrecise string
	InputByID    string
	InputAny     string

	ClearButton   string
	ConfirmDialog string
	ConfirmButton string
	ErrorBanner   string
	SuccessDialog string
	OKButton      string
	CancelButton  string
}

// DefaultSelectors returns the selectors for the duoink.co PTE dashboard.
// Labels are matched in both Chinese and English.
func DefaultSelectors() Selectors {
	return Selectors{
		InputPrecise: "input[autocomplete='off'][autofocus='autofocus'][type='text']",
		InputByID:    "input[id^='input-']",
		InputAny:     "input",

		ClearButton:   "xpath=//button[contains(@class, 'mdi-close')]",
		ConfirmDialog: "xpath=//div[contains(@class, 'v-card') and .//div[contains(text(), '兑换邀请码') or contains(text(), 'Redeem Invitation Code')]]",
		ConfirmButton: "xpath=//button[.//span[contains(text(), '确认') or contains(text(), 'Confirm')]]",
		ErrorBanner:   "div[style*='background-color: rgb(244, 67, 54)']",
		SuccessDialog: "xpath=//div[contains(@class, 'v-card') and .//div[contains(text(), '兑换成功') or contains(text(), 'Redemption Successful')]]",
		OKButton:      "xpath=//button[.//span[contains(text(), 'OK') or contains(text(), '确定')]]",
		CancelButton:  "xpath=//button[.//span[contains(text(), '取消') or contains(text(), 'Cancel')]]",
	}
}

// InputChain builds the input resolver chain from s, giving each strategy
// the same bounded wait.
func (s Selectors) InputChain(timeout time.Duration) ResolverChain {
	return ResolverChain{
		SelectorResolver{Label: "attribute combination", Selector: s.InputPrecise, Timeout: timeout},
		SelectorResolver{Label: "id pattern", Selector: s.InputByID, Timeout: timeout},
		SelectorResolver{Label: "generic input", Selector: s.InputAny, Timeout: timeout},
	}
}

// Timeouts bound every wait inside one attempt.
type Timeouts struct {
	Input   time.Duration // per input resolver
	Confirm time.Duration // confirmation prompt vs. direct error race
	Click   time.Duration // buttons inside dialogs
	Settle  time.Duration // fixed delay after confirming
	Success time.Duration // success dialog
	Poll    time.Duration // race polling interval
}

// DefaultTimeouts mirrors the response latency of the live site.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Input:   5 * time.Second,
		Confirm: 5 * time.Second,
		Click:   3 * time.Second,
		Settle:  2 * time.Second,
		Success: 3 * time.Second,
		Poll:    250 * time.Millisecond,
	}
}
