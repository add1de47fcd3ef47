// Package model defines the domain types used across the application.
package model

// SubscriptionKind identifies what a chat is subscribed to.
type SubscriptionKind string

// Supported subscription kinds.
const (
	KindAnnouncements SubscriptionKind = "ann"
	KindSpots         SubscriptionKind = "spot"
)

// ModeAny is the mode filter sentinel that accepts every mode.
const ModeAny = "ANY"

// Default band bounds shown to users when no band filter is set.
const (
	DefaultBandLow  = 0.0
	DefaultBandHigh = 99999.0
)

// Subscriber is a chat that talked to the bot.
type Subscriber struct {
	ChatID    int64
	FirstName string
	Username  string
}

// Announcement is a scheduled activation published on rdaward.ru.
type Announcement struct {
	Callsign string
	Declared string
	DateFrom string
	DateTo   string
	Source   string
	Added    string
	RDAs     []string
}

// ID returns the identity key of the announcement.
func (a Announcement) ID() string {
	return a.Callsign + "_" + a.Declared
}

// Spot is a single live report received from the cluster stream.
type Spot struct {
	Callsign string
	Time     string
	Freq     float64
	RawFreq  string
	Mode     string
	RDA      string
	Comment  string
	Spotter  string
}

// SubscriberFilter holds the per-chat spot filtering configuration.
// Nil band bounds are unbounded. An empty RDAs list allows every zone.
type SubscriberFilter struct {
	Mode     string
	BandLow  *float64
	BandHigh *float64
	RDAs     []string
	Template string
}
