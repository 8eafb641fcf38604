package models

import (
	"time"
)

// Sentiment is the directional read on an instrument's primary flow signal.
type Sentiment string

const (
	SentimentBullish Sentiment = "BULLISH"
	SentimentBearish Sentiment = "BEARISH"
	SentimentNeutral Sentiment = "NEUTRAL"
)

// Valid reports whether the sentiment is one of the known labels.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentBullish, SentimentBearish, SentimentNeutral:
		return true
	}
	return false
}

// RawSignalRecord is the per-instrument snapshot produced by ingestion.
// Every sub-record is optional; a nil pointer means the upstream feed had
// nothing for that slice of the market. The decision core treats absence
// as a documented neutral default, never as an error.
type RawSignalRecord struct {
	Instrument    string               `json:"instrument"`
	Sentiment     Sentiment            `json:"sentiment"`
	Conviction    *float64             `json:"conviction,omitempty"` // 0..1
	TradeCount    int                  `json:"trade_count"`
	DarkPool      *DarkPoolRecord      `json:"dark_pool,omitempty"`
	Insider       *InsiderRecord       `json:"insider,omitempty"`
	Congress      *CongressRecord      `json:"congress,omitempty"`
	Institutional *InstitutionalRecord `json:"institutional,omitempty"`
	MarketTide    *MarketTideRecord    `json:"market_tide,omitempty"`
	Calendar      *CalendarRecord      `json:"calendar,omitempty"`
	Greeks        *GreeksRecord        `json:"options_greeks,omitempty"`
	ShortInterest *ShortInterestRecord `json:"short_interest,omitempty"`
	OIChange      *OIChangeRecord      `json:"oi_change,omitempty"`
	ETFFlow       *ETFFlowRecord       `json:"etf_flow,omitempty"`
	Squeeze       *SqueezeRecord       `json:"squeeze,omitempty"`
	SweepTrades   []SweepTrade         `json:"sweep_trades,omitempty"`
	LastUpdate    time.Time            `json:"last_update"`
}

// ConvictionOrDefault returns the snapshot conviction, or 0.5 when the
// ingestion layer did not attach one. 0.5 is deliberate: an absent reading
// is "no opinion", not "no conviction".
func (r *RawSignalRecord) ConvictionOrDefault() (float64, bool) {
	if r.Conviction == nil {
		return 0.5, false
	}
	c := *r.Conviction
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c, true
}

// DarkPoolRecord summarizes off-exchange block activity.
type DarkPoolRecord struct {
	NotionalUSD float64   `json:"notional_usd"`
	PrintCount  int       `json:"print_count"`
	Sentiment   Sentiment `json:"sentiment"`
}

// InsiderRecord summarizes Form-4 style insider transactions.
type InsiderRecord struct {
	NetBuyUSD     float64 `json:"net_buy_usd"`
	BuyerCount    int     `json:"buyer_count"`
	ClusterBuying bool    `json:"cluster_buying"`
}

// CongressRecord summarizes disclosed congressional trades.
type CongressRecord struct {
	NetBuyUSD    float64 `json:"net_buy_usd"`
	RecentTrades int     `json:"recent_trades"`
}

// InstitutionalRecord summarizes 13F-style positioning changes.
type InstitutionalRecord struct {
	NetFlowUSD         float64 `json:"net_flow_usd"`
	OwnershipChangePct float64 `json:"ownership_change_pct"`
}

// MarketTideRecord is the market-wide premium tide for the instrument.
type MarketTideRecord struct {
	NetCallPremiumUSD float64 `json:"net_call_premium_usd"`
	NetPutPremiumUSD  float64 `json:"net_put_premium_usd"`
}

// CalendarRecord carries upcoming event context.
type CalendarRecord struct {
	DaysToEarnings int  `json:"days_to_earnings"` // negative when unknown
	HasCatalyst    bool `json:"has_catalyst"`
}

// GreeksRecord carries the options-surface aggregates available upstream.
type GreeksRecord struct {
	GammaExposureUSD float64 `json:"gamma_exposure_usd"`
	NetDelta         float64 `json:"net_delta"`
	IVRank           float64 `json:"iv_rank"` // 0..100
}

// ShortInterestRecord carries short interest and FTD pressure.
type ShortInterestRecord struct {
	ShortPctFloat float64 `json:"short_pct_float"` // 0..1
	FTDShares     float64 `json:"ftd_shares"`
	DaysToCover   float64 `json:"days_to_cover"`
}

// OIChangeRecord is the day-over-day open interest change.
type OIChangeRecord struct {
	CallOIChangePct float64 `json:"call_oi_change_pct"`
	PutOIChangePct  float64 `json:"put_oi_change_pct"`
}

// ETFFlowRecord is the net creation/redemption flow of ETFs holding the
// instrument. Tint is the signed net-inflow share in [-1, 1].
type ETFFlowRecord struct {
	NetFlowUSD float64 `json:"net_flow_usd"`
	Tint       float64 `json:"tint"`
}

// SqueezeRecord carries volatility-compression state.
type SqueezeRecord struct {
	InSqueeze   bool    `json:"in_squeeze"`
	Compression float64 `json:"compression"` // 0..1, 1 = tightest
}

// SweepTrade is a single aggressive multi-exchange sweep print.
type SweepTrade struct {
	PremiumUSD float64   `json:"premium_usd"`
	Timestamp  time.Time `json:"timestamp"`
}
