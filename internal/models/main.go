// Package models defines the wire structures of the LibreLinkUp cloud API
// and the rows written to the local health store.
package models

import "time"

// User identifies the account holder as returned by the login endpoint.
type User struct {
	// ID is the account identifier; its SHA-256 digest becomes the
	// Account-Id request header.
	ID string `json:"id"`
	// FirstName of the account holder.
	FirstName string `json:"firstName"`
	// LastName of the account holder.
	LastName string `json:"lastName"`
	// Email used to log in.
	Email string `json:"email"`
}

// AuthTicket is the bearer credential issued at login and rotated on every
// connections response.
type AuthTicket struct {
	// Token is the opaque bearer string.
	Token string `json:"token"`
	// Expires is a unix timestamp in seconds.
	Expires int64 `json:"expires"`
	// Duration
	Duration int64 `json:"duration"`
}

// Sensor describes the physical sensor attached to a connection.
type Sensor struct {
	DeviceID string `json:"deviceId"`
	// SN is the sensor serial number.
	SN string `json:"sn"`
}

// GlucoseMeasurement is one reading as reported by the cloud. Field names
// follow the upstream JSON exactly, mixed casing included.
type GlucoseMeasurement struct {
	// FactoryTimestamp is the sensor-clock timestamp, nominally UTC.
	FactoryTimestamp string `json:"FactoryTimestamp"`
	// Timestamp is the same instant shifted into the patient's local zone.
	Timestamp string `json:"Timestamp"`
	// Type discriminates scheduled from scanned readings.
	Type int `json:"type"`
	// ValueInMgPerDl is the glucose concentration in mg/dL.
	ValueInMgPerDl int `json:"ValueInMgPerDl"`
	// TrendArrow encodes the rate of change, 1 (falling quickly) to 5
	// (rising quickly).
	TrendArrow int `json:"TrendArrow"`
	// TrendMessage is an optional human-readable trend note.
	TrendMessage string `json:"TrendMessage"`
	// MeasurementColor encodes the in-range classification.
	MeasurementColor int `json:"MeasurementColor"`
	// GlucoseUnits is the display unit preference, 1 for mg/dL.
	GlucoseUnits int `json:"GlucoseUnits"`
	// Value is the reading in the display unit.
	Value  float64 `json:"Value"`
	IsHigh bool    `json:"isHigh"`
	IsLow  bool    `json:"isLow"`
}

// Connection binds a followed patient to their sensor and latest reading.
type Connection struct {
	ID        string `json:"id"`
	PatientID string `json:"patientId"`
	Country   string `json:"country"`
	Status    int    `json:"status"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	// Sensor currently paired with the patient.
	Sensor *Sensor `json:"sensor"`
	// GlucoseMeasurement is the latest reading for the patient.
	GlucoseMeasurement *GlucoseMeasurement `json:"glucoseMeasurement"`
	// GlucoseItem is the prior reading snapshot; only the latest is synced.
	GlucoseItem *GlucoseMeasurement `json:"glucoseItem"`
}

// APIError is the error envelope the cloud attaches to non-zero statuses.
type APIError struct {
	Message string `json:"message"`
}

// LoginData is the payload of a successful login.
type LoginData struct {
	User       *User       `json:"user"`
	AuthTicket *AuthTicket `json:"authTicket"`
}

// LoginResult is the full login response envelope. Status zero means
// success; anything else carries an optional Error.
type LoginResult struct {
	Status int        `json:"status"`
	Error  *APIError  `json:"error"`
	Data   *LoginData `json:"data"`
}

// ConnectionsResult is the connections response envelope. Ticket carries
// the rotated credential that replaces the one used for the request.
type ConnectionsResult struct {
	Status int          `json:"status"`
	Error  *APIError    `json:"error"`
	Data   []Connection `json:"data"`
	Ticket *AuthTicket  `json:"ticket"`
}

// GlucoseReading is one row of the local health store.
type GlucoseReading struct {
	// ID is the row identifier, assigned by the repository.
	ID string
	// RecordedAt is the normalized reading instant; its zone offset is
	// stored alongside the instant.
	RecordedAt time.Time
	// ValueMgPerDl is the glucose concentration in mg/dL.
	ValueMgPerDl int
	// SpecimenSource names the measured fluid.
	SpecimenSource SpecimenSource
	// RelationToMeal
	RelationToMeal MealRelation
	// Origin identifies the writing application.
	Origin string
}

// SpecimenSource defines the set of valid specimen identifiers.
type SpecimenSource string

// MealRelation defines the set of valid meal-relation identifiers.
type MealRelation string

const (
	// SpecimenInterstitialFluid is what a continuous sensor measures.
	SpecimenInterstitialFluid SpecimenSource = "interstitial_fluid"
	// MealRelationUnknown is recorded when the relation is not reported.
	MealRelationUnknown MealRelation = "unknown"
)
