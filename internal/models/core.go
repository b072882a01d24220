// Package models holds the types shared by the sources and the aggregation
// layer: metric families, provider tags and raw provider rows.
package models

import (
	"fmt"
	"log/slog"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// Family identifies one metric family served by the aggregation layer.
type Family string

const (
	FamilyDaily   Family = "daily"
	FamilyPages   Family = "pages"
	FamilyTraffic Family = "traffic"
	FamilyDevices Family = "devices"
	FamilyGeo     Family = "geo"
	FamilySummary Family = "summary"
)

// AllFamilies lists every family in a stable order.
var AllFamilies = []Family{
	FamilyDaily, FamilyPages, FamilyTraffic, FamilyDevices, FamilyGeo, FamilySummary,
}

// ParseFamily converts a user supplied name into a Family.
func ParseFamily(name string) (Family, error) {
	for _, f := range AllFamilies {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown metric family: %q", name)
}

// Provider tags where a batch of raw rows came from.
type Provider int

const (
	// ProviderHistorical is the warehoused dataset of the discontinued provider.
	ProviderHistorical Provider = iota + 1
	// ProviderLive is the currently active remote analytics API.
	ProviderLive
)

func (p Provider) String() string {
	switch p {
	case ProviderHistorical:
		return "historical"
	case ProviderLive:
		return "live"
	default:
		return "unknown"
	}
}

// Row is one raw or normalized record: field name to scalar value.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Lookup reports the value stored under key and whether it is present.
// A present key holding nil counts as absent.
func (r Row) Lookup(key string) (any, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// PerformWrite executes a write transaction with retry logic for SQLite busy errors.
// This is a wrapper that delegates to cartridge's sqlite.PerformWrite implementation.
func PerformWrite(logger *slog.Logger, dbConn *gorm.DB, f func(tx *gorm.DB) error) error {
	return sqlite.PerformWrite(logger, dbConn, f)
}
