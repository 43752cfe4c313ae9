// Package status derives the display status of a subscription from its
// dates and price. Nothing here is stored; callers evaluate on every render.
package status

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"subscribe/internal/model"
)

type Label string

const (
	LabelTrial Label = "Trial"
	LabelFree  Label = "Free"
	LabelPaid  Label = "Paid"
)

// Urgency is a display hint derived from the days remaining.
type Urgency string

const (
	UrgencyNone   Urgency = "none"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

const (
	InvalidDate  = "Invalid Date"
	PastDue      = "Past due"
	notAvailable = "N/A"
)

type Status struct {
	Label         Label   `json:"label"`
	Urgency       Urgency `json:"urgency"`
	RemainingText string  `json:"remaining_text,omitempty"`
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate parses ISO-8601 date or date-time text. Values without a zone are UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DaysBetween returns the number of whole days from now to date, truncated toward zero.
func DaysBetween(date, now time.Time) int {
	return int(date.Sub(now) / (24 * time.Hour))
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func plural(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}

// Evaluate computes the display status of sub at now. A trial end date takes
// precedence over billing; a free subscription without a trial has no countdown.
func Evaluate(sub *model.Subscription, now time.Time) Status {
	if present(sub.TrialEndDate) {
		st := Status{Label: LabelTrial, Urgency: UrgencyNormal}
		end, ok := ParseDate(*sub.TrialEndDate)
		if !ok {
			st.RemainingText = InvalidDate
			return st
		}
		d := DaysBetween(end, now)
		switch {
		case d < 0:
			st.RemainingText = "Ended"
		case d == 0:
			st.RemainingText = "Ends today"
		default:
			st.RemainingText = fmt.Sprintf("Ends in %d %s", d, plural(d))
		}
		if d >= 0 && d <= 3 {
			st.Urgency = UrgencyHigh
		}
		return st
	}

	if sub.Price == 0 {
		return Status{Label: LabelFree, Urgency: UrgencyNone}
	}

	st := Status{Label: LabelPaid, Urgency: UrgencyNormal}
	if !present(sub.NextBillingDate) {
		return st
	}
	next, ok := ParseDate(*sub.NextBillingDate)
	if !ok {
		st.RemainingText = InvalidDate
		return st
	}
	d := DaysBetween(next, now)
	switch {
	case d < 0:
		st.RemainingText = PastDue
		st.Urgency = UrgencyHigh
	case d == 0:
		st.RemainingText = "Due today"
		st.Urgency = UrgencyHigh
	default:
		st.RemainingText = fmt.Sprintf("In %d %s", d, plural(d))
		if d <= 2 {
			st.Urgency = UrgencyHigh
		}
	}
	return st
}

// FormatDate renders a stored date for display.
func FormatDate(s *string) string {
	if !present(s) {
		return notAvailable
	}
	t, ok := ParseDate(*s)
	if !ok {
		return InvalidDate
	}
	return t.Format("Jan 2, 2006")
}

// DisplayPrice renders the price per renewal period. With annualized set,
// monthly prices are shown per year and yearly prices per month.
func DisplayPrice(sub *model.Subscription, annualized bool) string {
	if sub.Price == 0 {
		return string(LabelFree)
	}
	price := sub.Price
	period := string(sub.RenewalPeriod)
	if period == "" {
		period = "cycle"
	}
	if annualized {
		switch sub.RenewalPeriod {
		case model.RenewalMonthly:
			price, period = sub.Price*12, "year"
		case model.RenewalYearly:
			price, period = sub.Price/12, "month"
		}
	}
	return fmt.Sprintf("%s %.2f / %s", sub.Currency, price, period)
}

// SortByNextBilling orders subs by next billing date, soonest first.
// Absent and unparseable dates sort last, keeping their relative order.
func SortByNextBilling(subs []model.Subscription) {
	key := func(s *model.Subscription) (time.Time, bool) {
		if !present(s.NextBillingDate) {
			return time.Time{}, false
		}
		return ParseDate(*s.NextBillingDate)
	}
	slices.SortStableFunc(subs, func(a, b model.Subscription) int {
		ta, okA := key(&a)
		tb, okB := key(&b)
		switch {
		case okA && okB:
			return ta.Compare(tb)
		case okA:
			return -1
		case okB:
			return 1
		}
		return 0
	})
}
