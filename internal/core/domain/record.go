package domain

// RecordVersion is the current persisted record layout version.
const RecordVersion = 1

// Preferences are device-level flags stored next to the snapshot.
type Preferences struct {
	Onboarded bool `json:"onboarded"`
}

// Record is the single persisted value: the snapshot plus preference flags.
// Status and the hydration flag are never part of it.
type Record struct {
	Version     int         `json:"version"`
	Snapshot    *Snapshot   `json:"snapshot,omitempty"`
	Preferences Preferences `json:"preferences"`
}

// NewRecord builds a record at the current version.
func NewRecord(snap *Snapshot, prefs Preferences) *Record {
	return &Record{
		Version:     RecordVersion,
		Snapshot:    snap.Clone(),
		Preferences: prefs,
	}
}
