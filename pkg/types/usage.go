// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ConversionRecord is one successful conversion counted against the quota.
type ConversionRecord struct {
	// ID is a unique, sortable identifier for the conversion.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Timestamp is when the conversion completed.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// Filename is the input file name, empty when unknown.
	Filename string `json:"filename" yaml:"filename"`
}

// DailyUsage is the usage state for a single calendar day.
type DailyUsage struct {
	// Date is the local calendar day as YYYY-MM-DD.
	Date string `json:"date" yaml:"date"`

	// Count is the number of conversions performed on Date.
	Count int `json:"count" yaml:"count"`

	// Conversions lists the records counted in Count.
	Conversions []ConversionRecord `json:"conversions" yaml:"conversions"`
}

// UsageSummary reports today's usage against the daily limit.
type UsageSummary struct {
	Date           string  `json:"date" yaml:"date"`
	Count          int     `json:"count" yaml:"count"`
	Limit          int     `json:"limit" yaml:"limit"`
	Remaining      int     `json:"remaining" yaml:"remaining"`
	PercentageUsed float64 `json:"percentage_used" yaml:"percentage_used"`
}
