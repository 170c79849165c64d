// Package repository runs the aggregate queries behind the reporting API.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DashboardCounts summarizes the engine for the operator dashboard.
type DashboardCounts struct {
	TotalLeads       int
	LeadsToday       int
	PendingLeads     int
	AssignedLeads    int
	FinalizedLeads   int
	OpenInteractions int
	ActiveBrokers    int
}

// BrokerPerformance counts one broker's offer outcomes.
type BrokerPerformance struct {
	BrokerID uuid.UUID
	Name     string
	Active   bool
	Offers   int
	Accepted int
	Declined int
	TimedOut int
	Errors   int
}

// StatusCount pairs a status with its row count.
type StatusCount struct {
	Status string
	Count  int
}

// DailyCount pairs a day with its lead count.
type DailyCount struct {
	Day   time.Time
	Count int
}

// ConversionStats measures how offers resolve.
type ConversionStats struct {
	Offers              int
	Accepted            int
	Declined            int
	TimedOut            int
	Errors              int
	AvgResponseSeconds  float64
	AcceptedWithinFirst int
}

// Repo runs reporting queries against PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new reports repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Dashboard collects the headline counters in one round trip.
func (r *Repo) Dashboard(ctx context.Context) (DashboardCounts, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM leads),
			(SELECT COUNT(*) FROM leads WHERE created_at >= date_trunc('day', now())),
			(SELECT COUNT(*) FROM leads WHERE status = 'pending'),
			(SELECT COUNT(*) FROM leads WHERE status = 'assigned'),
			(SELECT COUNT(*) FROM leads WHERE status = 'finalized'),
			(SELECT COUNT(*) FROM interactions WHERE status = 'sent'),
			(SELECT COUNT(*) FROM brokers WHERE active)`

	var counts DashboardCounts
	err := r.pool.QueryRow(ctx, query).Scan(
		&counts.TotalLeads, &counts.LeadsToday,
		&counts.PendingLeads, &counts.AssignedLeads, &counts.FinalizedLeads,
		&counts.OpenInteractions, &counts.ActiveBrokers,
	)
	if err != nil {
		return DashboardCounts{}, fmt.Errorf("dashboard counts: %w", err)
	}
	return counts, nil
}

// BrokerPerformance aggregates offer outcomes per broker, including brokers
// who never received an offer.
func (r *Repo) BrokerPerformance(ctx context.Context) ([]BrokerPerformance, error) {
	query := `
		SELECT
			b.id, b.name, b.active,
			COUNT(i.id),
			COUNT(i.id) FILTER (WHERE i.status = 'accepted'),
			COUNT(i.id) FILTER (WHERE i.status = 'declined'),
			COUNT(i.id) FILTER (WHERE i.status = 'timed_out'),
			COUNT(i.id) FILTER (WHERE i.status = 'error')
		FROM brokers b
		LEFT JOIN interactions i ON i.broker_id = b.id
		GROUP BY b.id, b.name, b.active
		ORDER BY b.name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("broker performance: %w", err)
	}
	defer rows.Close()

	out := make([]BrokerPerformance, 0)
	for rows.Next() {
		var perf BrokerPerformance
		err := rows.Scan(
			&perf.BrokerID, &perf.Name, &perf.Active,
			&perf.Offers, &perf.Accepted, &perf.Declined, &perf.TimedOut, &perf.Errors,
		)
		if err != nil {
			return nil, fmt.Errorf("scan broker performance: %w", err)
		}
		out = append(out, perf)
	}
	return out, rows.Err()
}

// LeadStatusCounts counts leads per status created inside the period.
func (r *Repo) LeadStatusCounts(ctx context.Context, start, end time.Time) ([]StatusCount, error) {
	query := `
		SELECT status, COUNT(*)
		FROM leads
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY status
		ORDER BY status`

	rows, err := r.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("lead status counts: %w", err)
	}
	defer rows.Close()

	out := make([]StatusCount, 0)
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// LeadsPerDay buckets lead arrivals by day inside the period.
func (r *Repo) LeadsPerDay(ctx context.Context, start, end time.Time) ([]DailyCount, error) {
	query := `
		SELECT date_trunc('day', created_at) AS day, COUNT(*)
		FROM leads
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY day
		ORDER BY day`

	rows, err := r.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("leads per day: %w", err)
	}
	defer rows.Close()

	out := make([]DailyCount, 0)
	for rows.Next() {
		var dc DailyCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return nil, fmt.Errorf("scan daily count: %w", err)
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

// Conversion measures how offers resolved inside the period.
// AcceptedWithinFirst counts leads assigned on their very first offer.
func (r *Repo) Conversion(ctx context.Context, start, end time.Time) (ConversionStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'accepted'),
			COUNT(*) FILTER (WHERE status = 'declined'),
			COUNT(*) FILTER (WHERE status = 'timed_out'),
			COUNT(*) FILTER (WHERE status = 'error'),
			COALESCE(EXTRACT(EPOCH FROM AVG(responded_at - sent_at) FILTER (WHERE status IN ('accepted', 'declined'))), 0)
		FROM interactions
		WHERE sent_at >= $1 AND sent_at < $2`

	var stats ConversionStats
	err := r.pool.QueryRow(ctx, query, start, end).Scan(
		&stats.Offers, &stats.Accepted, &stats.Declined, &stats.TimedOut, &stats.Errors,
		&stats.AvgResponseSeconds,
	)
	if err != nil {
		return ConversionStats{}, fmt.Errorf("conversion stats: %w", err)
	}

	firstOfferQuery := `
		SELECT COUNT(*)
		FROM (
			SELECT DISTINCT ON (lead_id) lead_id, status
			FROM interactions
			WHERE sent_at >= $1 AND sent_at < $2
			ORDER BY lead_id, sent_at ASC
		) first_offers
		WHERE status = 'accepted'`

	if err := r.pool.QueryRow(ctx, firstOfferQuery, start, end).Scan(&stats.AcceptedWithinFirst); err != nil {
		return ConversionStats{}, fmt.Errorf("first offer conversion: %w", err)
	}
	return stats, nil
}
