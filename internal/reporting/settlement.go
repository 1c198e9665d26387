// Package reporting summarises stored payments for operators.
package reporting

import (
	"regexp"
	"sort"
	"time"

	"github.com/yourorg/payment-settlement/internal/payment"
)

var resultCodePattern = regexp.MustCompile(`resultCode=([^,)\s]+)`)

// SettlementReport summarises a set of payments.
type SettlementReport struct {
	TotalPayments    int                      `json:"totalPayments"`
	ByStatus         map[payment.Status]int   `json:"byStatus"`
	SettledAmount    int64                    `json:"settledAmount"`    // sum of SUCCEED amounts
	AmountByPGType   map[payment.PGType]int64 `json:"amountByPgType"`   // SUCCEED amounts per provider
	FailureBreakdown map[string]int           `json:"failureBreakdown"` // provider resultCode, or "other", per FAILED payment
	PendingOrphans   int                      `json:"pendingOrphans"`   // PENDING payments with no remote order
	DateFrom         time.Time                `json:"dateFrom"`
	DateTo           time.Time                `json:"dateTo"`
	Span             time.Duration            `json:"span"`
}

// SettlementReporter builds reports from payments.
type SettlementReporter struct {
	now func() time.Time
}

func NewSettlementReporter() *SettlementReporter {
	return &SettlementReporter{now: time.Now}
}

// Generate summarises payments. Creation times bound the reported window.
func (r *SettlementReporter) Generate(payments []*payment.Payment) *SettlementReport {
	report := &SettlementReport{
		ByStatus:         make(map[payment.Status]int),
		AmountByPGType:   make(map[payment.PGType]int64),
		FailureBreakdown: make(map[string]int),
	}
	for _, p := range payments {
		if p == nil {
			continue
		}
		report.TotalPayments++
		report.ByStatus[p.Status]++

		if report.DateFrom.IsZero() || p.CreatedAt.Before(report.DateFrom) {
			report.DateFrom = p.CreatedAt
		}
		if p.CreatedAt.After(report.DateTo) {
			report.DateTo = p.CreatedAt
		}

		switch p.Status {
		case payment.StatusSucceed:
			report.SettledAmount += p.TotalAmount
			report.AmountByPGType[p.PGType] += p.TotalAmount
		case payment.StatusFailed:
			report.FailureBreakdown[FailureCode(p)]++
		case payment.StatusPending:
			if p.OrderID == "" {
				report.PendingOrphans++
			}
		}
	}
	if report.TotalPayments > 0 {
		report.Span = report.DateTo.Sub(report.DateFrom)
	}
	return report
}

// StalePending returns the PENDING payments created more than olderThan ago,
// oldest first. These need out-of-band reconciliation.
func (r *SettlementReporter) StalePending(payments []*payment.Payment, olderThan time.Duration) []*payment.Payment {
	cutoff := r.now().Add(-olderThan)
	stale := make([]*payment.Payment, 0)
	for _, p := range payments {
		if p != nil && p.IsPending() && p.CreatedAt.Before(cutoff) {
			stale = append(stale, p)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })
	return stale
}

// FailureCode extracts the provider resultCode recorded in a failed payment's memo.
func FailureCode(p *payment.Payment) string {
	if m := resultCodePattern.FindStringSubmatch(p.Memo); m != nil {
		return m[1]
	}
	return "other"
}
