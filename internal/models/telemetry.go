// internal/models/telemetry.go
package models

import "time"

// IntentSnapshot is the short-lived Redis record written when an intent is
// detected and consumed when the session reaches an outcome.
type IntentSnapshot struct {
	TenantID          string    `json:"tenantId"`
	SessionID         string    `json:"sessionId"`
	UserPhone         string    `json:"userPhone,omitempty"`
	UserID            string    `json:"userId,omitempty"`
	Intent            string    `json:"intent"`
	IntentConfidence  float64   `json:"intentConfidence"`
	IntentTimestamp   time.Time `json:"intentTimestamp"`
	ConversationStart time.Time `json:"conversationStart"`
}

// TelemetryRecord is one row of intent_outcome_telemetry.
type TelemetryRecord struct {
	TenantID                    string
	SessionID                   string
	UserPhone                   string
	UserID                      string
	ConversationID              string
	IntentDetected              string
	IntentTimestamp             time.Time
	OutcomeFinalized            string
	OutcomeTimestamp            *time.Time
	ConversionTimeSeconds       *int64
	Abandoned                   bool
	AbandonmentStage            string
	ConversationDurationSeconds int64
	Source                      string
}

type IntentConversion struct {
	Intent         string  `json:"intent"`
	Count          int     `json:"count"`
	ConversionRate float64 `json:"conversionRate"`
}

type OutcomeTiming struct {
	Outcome string `json:"outcome"`
	Count   int    `json:"count"`
	AvgTime int64  `json:"avgTime"`
}

type ConversionMetrics struct {
	TotalIntents             int                `json:"totalIntents"`
	TotalOutcomes            int                `json:"totalOutcomes"`
	ConversionRate           float64            `json:"conversionRate"`
	AvgConversionTimeSeconds int64              `json:"avgConversionTimeSeconds"`
	AbandonmentRate          float64            `json:"abandonmentRate"`
	TopIntents               []IntentConversion `json:"topIntents"`
	TopOutcomes              []OutcomeTiming    `json:"topOutcomes"`
}
