// Package menu defines the reply-keyboard tree: section labels, the
// predefined questions under each section, and the back action. Keyboard
// construction from these rows lives in the telegram package.
package menu

// Menu identifies one reply keyboard in the tree.
type Menu int

const (
	// None means no keyboard change is requested.
	None Menu = iota
	// Main is the top-level section menu.
	Main
	// Fees covers challenge pass pricing.
	Fees
	// Rules covers trading rules and restrictions.
	Rules
	// Profit covers profit withdrawal.
	Profit
	// Bot covers questions about the trading bot itself.
	Bot
	// Security covers account security.
	Security
	// Mobile covers mobile trading.
	Mobile
)

// BackLabel returns the user to the main menu and abandons any pending
// question for that user.
const BackLabel = "🔙 بازگشت به منوی اصلی"

const (
	labelFees     = "💰 تعرفه پاس کردن چالش‌ها"
	labelRules    = "⚠️ قوانین و محدودیت‌ها"
	labelProfit   = "💸 نحوه برداشت سود"
	labelBot      = "🤖 سوالات درباره ربات"
	labelSecurity = "🔐 امنیت حساب"
	labelMobile   = "📱 ترید با موبایل"
)

var sectionByLabel = map[string]Menu{
	labelFees:     Fees,
	labelRules:    Rules,
	labelProfit:   Profit,
	labelBot:      Bot,
	labelSecurity: Security,
	labelMobile:   Mobile,
}

var rowsByMenu = map[Menu][][]string{
	Main: {
		{labelFees, labelRules},
		{labelProfit, labelBot},
		{labelSecurity, labelMobile},
	},
	Fees: {
		{"تعرفه حساب‌های مختلف", "زمان پاس شدن چالش"},
		{"تضمین پاس کردن چالش", "هزینه پاس کردن چالش"},
		{BackLabel},
	},
	Rules: {
		{"دراپ داون چیست؟", "مارتینگل چیست؟"},
		{"هج چیست؟", "حداقل روزهای معاملاتی"},
		{"ترید با اخبار", "اهرم ترید"},
		{BackLabel},
	},
	Profit: {
		{"روش برداشت سود", "زمان برداشت"},
		{"حداقل سود برای برداشت", "تقسیم سود در حساب ریل"},
		{BackLabel},
	},
	Bot: {
		{"چطور ربات کار میکنه؟", "نحوه ارسال اطلاعات حساب"},
		{"نمادهای معاملاتی ربات", "امکان ترید همزمان با ربات"},
		{BackLabel},
	},
	Security: {
		{"مشکل IP", "امنیت اطلاعات ورود"},
		{BackLabel},
	},
	Mobile: {
		{"آیا میتوان با موبایل ترید کرد؟"},
		{BackLabel},
	},
}

// SectionForLabel resolves a main-menu section label to its menu.
func SectionForLabel(text string) (Menu, bool) {
	m, ok := sectionByLabel[text]
	return m, ok
}

// IsBack reports whether text is the back-to-main-menu action.
func IsBack(text string) bool {
	return text == BackLabel
}

// Rows returns the keyboard rows for a menu, or nil for None or an unknown
// menu. Callers must not mutate the returned slices.
func Rows(m Menu) [][]string {
	return rowsByMenu[m]
}

// PredefinedQuestions lists every question reachable through the section
// keyboards. These go through the same answer pipeline as free text; they are
// just more likely to hit the knowledge base.
func PredefinedQuestions() []string {
	questions := make([]string, 0, 21)
	for _, m := range []Menu{Fees, Rules, Profit, Bot, Security, Mobile} {
		for _, row := range rowsByMenu[m] {
			for _, label := range row {
				if label == BackLabel {
					continue
				}
				questions = append(questions, label)
			}
		}
	}

	return questions
}
