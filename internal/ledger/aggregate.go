package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// DayLayout keys day buckets and period rows.
	DayLayout = "02-01-2006"
	// ClockLayout is the time of day shown for entries inside a day bucket.
	ClockLayout = "15:04"

	maxPeriodDays = 366
)

// Page is one page of a transaction listing.
type Page struct {
	Items []Transaction
	Total int
	Page  int
	Limit int
}

// BucketEntry is a transaction with its local time of day.
type BucketEntry struct {
	Transaction Transaction
	Time        string
}

// DayBucket groups one calendar day of transactions, newest first.
type DayBucket struct {
	Day       string
	Timestamp time.Time
	Entries   []BucketEntry
}

// MonthlyEntry is a transaction joined with its wallet, if it still has one.
type MonthlyEntry struct {
	Transaction Transaction
	Wallet      *WalletSummary
}

// PeriodTotal sums one day of a period. Total adds IN and OUT magnitudes.
type PeriodTotal struct {
	Day       string
	Timestamp time.Time
	In        Amount
	Out       Amount
	Total     Amount
}

// ListTransactions pages through the owner's calculated transactions, newest
// first, optionally filtered by a case-insensitive description search.
func (e *Engine) ListTransactions(ctx context.Context, q ListQuery) (Page, error) {
	if q.Page < 1 {
		return Page{}, fmt.Errorf("%w: page must be at least 1", ErrInvalidArgument)
	}
	if q.Limit < 0 {
		return Page{}, fmt.Errorf("%w: limit must not be negative", ErrInvalidArgument)
	}
	items, total, err := e.store.ListTransactions(ctx, q)
	if err != nil {
		return Page{}, err
	}
	return Page{Items: items, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

// DateBuckets groups the owner's calculated transactions by calendar day in loc.
func (e *Engine) DateBuckets(ctx context.Context, ownerID uuid.UUID, loc *time.Location) ([]DayBucket, error) {
	txns, err := e.store.CalculatedTransactions(ctx, ownerID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	var buckets []DayBucket
	for _, t := range txns {
		local := t.CreatedAt.In(loc)
		day := local.Format(DayLayout)
		if n := len(buckets); n == 0 || buckets[n-1].Day != day {
			buckets = append(buckets, DayBucket{Day: day, Timestamp: t.CreatedAt})
		}
		b := &buckets[len(buckets)-1]
		b.Entries = append(b.Entries, BucketEntry{Transaction: t, Time: local.Format(ClockLayout)})
	}
	return buckets, nil
}

// MonthlyTransactions lists the owner's calculated transactions of one
// calendar month in loc, newest first, each with its wallet summary.
func (e *Engine) MonthlyTransactions(ctx context.Context, ownerID uuid.UUID, month time.Month, year int, loc *time.Location) ([]MonthlyEntry, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("%w: month %d", ErrInvalidArgument, month)
	}
	if year < 1 {
		return nil, fmt.Errorf("%w: year %d", ErrInvalidArgument, year)
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 1, 0)

	txns, err := e.store.CalculatedTransactions(ctx, ownerID, from, to)
	if err != nil {
		return nil, err
	}
	wallets, err := e.store.WalletsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]WalletSummary, len(wallets))
	for _, w := range wallets {
		byID[w.ID] = w.Summary()
	}

	out := make([]MonthlyEntry, 0, len(txns))
	for _, t := range txns {
		entry := MonthlyEntry{Transaction: t}
		if t.WalletID.Valid {
			if s, ok := byID[t.WalletID.UUID]; ok {
				entry.Wallet = &s
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// TotalByPeriod returns exactly days rows, oldest first, ending today in loc.
// Days without transactions are zero rows.
func (e *Engine) TotalByPeriod(ctx context.Context, ownerID uuid.UUID, days int, loc *time.Location) ([]PeriodTotal, error) {
	if days < 1 || days > maxPeriodDays {
		return nil, fmt.Errorf("%w: period must be between 1 and %d days", ErrInvalidArgument, maxPeriodDays)
	}
	now := e.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	start := today.AddDate(0, 0, -(days - 1))
	end := today.AddDate(0, 0, 1)

	totals, err := e.store.DailyTotals(ctx, ownerID, loc, start, end)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]DailyTotal, len(totals))
	for _, t := range totals {
		byDay[t.Day.In(loc).Format(DayLayout)] = t
	}

	rows := make([]PeriodTotal, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		key := day.Format(DayLayout)
		row := PeriodTotal{Day: key, Timestamp: day}
		if t, ok := byDay[key]; ok {
			row.In, row.Out, row.Total = t.In, t.Out, t.Sum
		}
		rows = append(rows, row)
	}
	return rows, nil
}
