package notifier

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"ReloadPilot/internal/runner"
)

func money(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

// FormatRunSummary formats a reload pass into a Telegram message.
func FormatRunSummary(sum runner.Summary) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("💳 <b>Reload run</b> | %s\n", sum.Started.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Reloads: %d | Failed accounts: %d\n\n", sum.Reloads(), sum.Failed()))

	for _, r := range sum.Results {
		name := html.EscapeString(r.Account)
		rep := r.Report
		switch {
		case r.Err != nil:
			b.WriteString(fmt.Sprintf("❌ %s: %s\n", name, html.EscapeString(r.Err.Error())))
		case !rep.Eligible:
			b.WriteString(fmt.Sprintf("⏸ %s: skipped (%s)\n", name, rep.Reason))
			continue
		default:
			b.WriteString(fmt.Sprintf("✅ %s: %d/%d reloads", name, rep.Succeeded, rep.Attempts))
			if r.State != nil && len(r.State.History) >= rep.Attempts {
				var total float64
				for _, p := range r.State.History[len(r.State.History)-rep.Attempts:] {
					if p.Succeeded {
						total += p.Amount
					}
				}
				b.WriteString(" totalling " + money(total))
			}
			b.WriteString("\n")
		}
		if rep.Shortfall {
			b.WriteString("   ⚠️ day range exhausted before quota, progress carried over\n")
		}
		if rep.Rollover {
			b.WriteString("   monthly quota met\n")
		}
		if !rep.NextEligible.IsZero() {
			b.WriteString(fmt.Sprintf("   next: %s\n", rep.NextEligible.Format("2006-01-02")))
		}
	}
	return b.String()
}

// FormatStatus formats stored progress for display.
func FormatStatus(statuses []runner.Status) string {
	var b strings.Builder
	b.WriteString("📦 <b>Reload status</b>\n\n")
	for _, s := range statuses {
		name := html.EscapeString(s.Account)
		if !s.Known {
			b.WriteString(fmt.Sprintf("%s: no runs yet (target %d)\n", name, s.Target))
			continue
		}
		b.WriteString(fmt.Sprintf("%s: %d/%d this cycle", name, s.Completed, s.Target))
		if s.NextEligible != nil {
			b.WriteString(fmt.Sprintf(", next %s", s.NextEligible.Format("2006-01-02")))
		}
		if s.LastReload != nil {
			mark := "✅"
			if !s.LastReload.Succeeded {
				mark = "❌"
			}
			b.WriteString(fmt.Sprintf(", last %s %s %s", mark, money(s.LastReload.Amount), s.LastReload.Timestamp.Format("2006-01-02")))
		}
		b.WriteString("\n")
	}
	return b.String()
}
