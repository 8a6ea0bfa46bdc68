package models

import (
	"testing"
	"time"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusNew, StatusPrefilterPass, true},
		{StatusNew, StatusPrefilterFail, true},
		{StatusNew, StatusCompleted, false},
		{StatusPrefilterPass, StatusResearching, true},
		{StatusPrefilterFail, StatusNew, false},
		{StatusResearching, StatusCompleted, true},
		{StatusResearching, StatusFailed, true},
		{StatusCompleted, StatusResearching, false},
		{StatusFailed, StatusNew, false},
		{StatusNew, StatusNew, true},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := ParseStatus("prefilter_pass"); !ok || s != StatusPrefilterPass {
		t.Errorf("ParseStatus(prefilter_pass) = %v, %v", s, ok)
	}
	if _, ok := ParseStatus("bogus"); ok {
		t.Error("ParseStatus should reject unknown status")
	}
}

func TestIsSold(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"Cafe Business — SOLD", true},
		{"sold: great opportunity", true},
		{"Plumbing Business for Sale", false},
		{"", false},
	}
	for _, tt := range tests {
		l := &Listing{Title: tt.title}
		if got := l.IsSold(); got != tt.want {
			t.Errorf("IsSold(%q) = %v, want %v", tt.title, got, tt.want)
		}
	}
}

func TestDerivedMetrics(t *testing.T) {
	l := &Listing{Price: 900_000, Revenue: 1_000_000, Ebitda: 300_000}

	margin, ok := l.EbitdaMargin()
	if !ok || margin != 0.3 {
		t.Errorf("EbitdaMargin = %v, %v; want 0.3, true", margin, ok)
	}

	multiple, ok := l.AskingMultiple()
	if !ok || multiple != 3.0 {
		t.Errorf("AskingMultiple = %v, %v; want 3.0, true", multiple, ok)
	}
}

func TestDerivedMetricsAbsent(t *testing.T) {
	noRevenue := &Listing{Ebitda: 300_000}
	if _, ok := noRevenue.EbitdaMargin(); ok {
		t.Error("EbitdaMargin should be undefined without revenue")
	}

	noEbitda := &Listing{Price: 900_000, Revenue: 1_000_000}
	if _, ok := noEbitda.AskingMultiple(); ok {
		t.Error("AskingMultiple should be undefined without ebitda")
	}
	if _, ok := noEbitda.EbitdaMargin(); ok {
		t.Error("EbitdaMargin should be undefined without ebitda")
	}
}

func TestListingPostedDateIsOptional(t *testing.T) {
	l := &Listing{}
	if l.PostedDate != nil {
		t.Error("zero-value listing should have no posted date")
	}

	posted := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	l.PostedDate = &posted
	if !l.PostedDate.Equal(posted) {
		t.Error("posted date round trip failed")
	}
}
