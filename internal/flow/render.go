package flow

import (
	"fmt"
	"sort"
	"strings"
)

// firstName extracts the leading token of a display name, falling back to
// a neutral "there" when the channel gives us nothing usable.
func firstName(displayName string) string {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

// groupThousands renders a float as a comma-grouped whole number, the way
// budget figures read in the procurement space ("12,500").
func groupThousands(v float64) string {
	n := int64(v)
	neg := n < 0
	if neg {
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		return "-" + s
	}
	return s
}

func bulletList(items []string) string {
	sorted := make([]string, len(items))
	copy(sorted, items)
	sort.Strings(sorted)
	lines := make([]string, len(sorted))
	for i, item := range sorted {
		lines[i] = "• " + item
	}
	return strings.Join(lines, "\n")
}

func renderDepartmentPrompt(name string, departments []string) string {
	return fmt.Sprintf("Hi %s,\nWhat department would you like to raise a PO for?\nOptions: %s",
		name, strings.Join(departments, ", "))
}

func renderGreetingCostItems(name, department string, items []string) string {
	return fmt.Sprintf("Hi %s,\nHere are the available cost items for %s:\n%s",
		name, department, bulletList(items))
}

func renderDepartmentCostItems(name, department string, items []string) string {
	return fmt.Sprintf("Thanks %s. Here are the cost items for %s:\n%s",
		name, department, bulletList(items))
}

func renderDepartmentNotRecognized(departments []string) string {
	return fmt.Sprintf("Department not recognized. Choose from: %s", strings.Join(departments, ", "))
}

func renderFigures(item, department, account string, budgeted, accountTotal, actuals float64) string {
	return fmt.Sprintf(
		"✅ Great, you've selected: %s under %s\n\n"+
			"📊 Budgeted for item: %s\n"+
			"📊 Budgeted total for account '%s': %s\n"+
			"📊 YTD actuals for '%s': %s\n\n"+
			"You can now upload the quote here to continue – Just a few more questions and we're done.",
		item, department,
		groupThousands(budgeted),
		account, groupThousands(accountTotal),
		account, groupThousands(actuals))
}

func renderCostItemNotRecognized(department string) string {
	return fmt.Sprintf("I couldn't find that cost item under %s. Please reply with one of the listed cost items.", department)
}

func renderQuoteReminder() string {
	return "Please upload the quote as an attachment to continue."
}

const (
	financeQ1 = "Has this item been budgeted for elsewhere this year? (yes/no)"
	financeQ2 = "And has this purchase been approved by the board? (yes/no)"
)

func renderFinanceQ1(name string) string {
	return fmt.Sprintf("Thanks %s, quote received.\n%s", name, financeQ1)
}

func renderFinanceQ2() string {
	return financeQ2
}

func renderAnswerReminder(question string) string {
	return "Please answer in text so I can record it.\n" + question
}

func renderDone(name string) string {
	return fmt.Sprintf("✅ All done, %s. Your PO request has been sent to procurement. Say 'Hi' anytime to raise another.", name)
}

func renderLedgerUnavailable() string {
	return "Sorry, I couldn't reach the budget ledger just now. Please try again in a moment."
}

func renderFallback() string {
	return "I'm not sure how to help with that. Start with 'Hi' or choose a department."
}
