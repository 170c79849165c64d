// Package transport defines the response DTOs for the reports API.
package transport

import "github.com/google/uuid"

// PeriodRequest bounds a report to a date range.
type PeriodRequest struct {
	Start string `form:"start" validate:"omitempty,datetime=2006-01-02"`
	End   string `form:"end" validate:"omitempty,datetime=2006-01-02"`
}

// DashboardResponse is the operator dashboard summary.
type DashboardResponse struct {
	TotalLeads       int     `json:"totalLeads"`
	LeadsToday       int     `json:"leadsToday"`
	PendingLeads     int     `json:"pendingLeads"`
	AssignedLeads    int     `json:"assignedLeads"`
	FinalizedLeads   int     `json:"finalizedLeads"`
	OpenInteractions int     `json:"openInteractions"`
	ActiveBrokers    int     `json:"activeBrokers"`
	AssignmentRate   float64 `json:"assignmentRate"`
}

// BrokerPerformanceResponse is one broker's offer outcome summary.
type BrokerPerformanceResponse struct {
	BrokerID    uuid.UUID `json:"brokerId"`
	Name        string    `json:"name"`
	Active      bool      `json:"active"`
	Offers      int       `json:"offers"`
	Accepted    int       `json:"accepted"`
	Declined    int       `json:"declined"`
	TimedOut    int       `json:"timedOut"`
	Errors      int       `json:"errors"`
	AcceptRate  float64   `json:"acceptRate"`
	TimeoutRate float64   `json:"timeoutRate"`
}

// DailyCountResponse is one day in a series.
type DailyCountResponse struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// LeadsByPeriodResponse summarizes lead arrivals in a period.
type LeadsByPeriodResponse struct {
	Start    string               `json:"start"`
	End      string               `json:"end"`
	Total    int                  `json:"total"`
	ByStatus map[string]int       `json:"byStatus"`
	PerDay   []DailyCountResponse `json:"perDay"`
}

// ConversionResponse summarizes offer resolution in a period.
type ConversionResponse struct {
	Offers               int     `json:"offers"`
	Accepted             int     `json:"accepted"`
	Declined             int     `json:"declined"`
	TimedOut             int     `json:"timedOut"`
	Errors               int     `json:"errors"`
	AcceptRate           float64 `json:"acceptRate"`
	AvgResponseSeconds   float64 `json:"avgResponseSeconds"`
	AcceptedOnFirstOffer int     `json:"acceptedOnFirstOffer"`
}
