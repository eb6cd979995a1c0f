// Package models defines the data types persisted by the local store and
// exchanged with the remote backend.
package models

import "time"

// EntityKind names one of the remote-authoritative reference tables.
type EntityKind string

const (
	KindSite       EntityKind = "sites"
	KindSpecies    EntityKind = "species"
	KindSupervisor EntityKind = "supervisors"
)

// Kinds lists all entity kinds in the order syncs are started.
var Kinds = []EntityKind{KindSite, KindSpecies, KindSupervisor}

// Entity is a Site, Species or Supervisor reference record. The server owns
// these; local copies are fully replaced on each successful sync. Ids are
// globally unique and stable across syncs. The server does not guarantee
// name ordering, so reads sort by name for display.
type Entity struct {
	ID   string
	Name string
}

// PendingTree is a locally created tree-planting record awaiting upload.
//
// AssetRef is a device-local identifier of the source photo (never a URL).
// ImageURL and ImageMD5 are empty until the upload pipeline publishes the
// photo; UploadedAt stays nil until the remote create is acknowledged.
type PendingTree struct {
	ID           string
	AssetRef     string
	SupervisorID string
	SpeciesID    string
	SiteID       string
	Notes        string
	Coordinates  string
	ImageURL     string
	ImageMD5     string
	PhotoTakenAt time.Time
	CreatedAt    time.Time
	UploadedAt   *time.Time

	// Local marks records created on this device, as opposed to rows
	// pulled down from the remote tree list.
	Local bool
}

// Uploaded reports whether the record has been confirmed by the backend.
func (t *PendingTree) Uploaded() bool {
	return t.UploadedAt != nil
}

// LedgerItem records a confirmed upload awaiting source-asset cleanup.
// An item enters the ledger only after the remote write is acknowledged.
type LedgerItem struct {
	TreeID     string
	AssetRef   string
	UploadedAt time.Time
}

// RecentSpecies biases the quick-pick list in the capture flow. Entries are
// only meaningful for the calendar day they were written.
type RecentSpecies struct {
	SpeciesID string
	UsedAt    time.Time
}

// TreePayload is the metadata published to the backend after the photo
// binary has been uploaded.
type TreePayload struct {
	ImageURL     string
	Latitude     string
	Longitude    string
	PlantedAt    time.Time
	SupervisorID string
	SiteID       string
	SpeciesID    string
	Notes        string
}
