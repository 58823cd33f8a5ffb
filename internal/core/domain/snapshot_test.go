package domain

import "testing"

func TestSnapshotFromRow(t *testing.T) {
	row := &UserRow{
		InternalID: 42,
		OpaqueID:   "abc",
		Email:      "a@x.com",
		Username:   "alice",
		Counts:     Counts{Followers: 3, Following: 2, Posts: 1},
	}

	snap := SnapshotFromRow(row)
	if !snap.Resolved {
		t.Error("snapshot from a row with a valid id should be resolved")
	}
	if snap.InternalID != 42 || snap.OpaqueID != "abc" || snap.Counts.Followers != 3 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.UpdatedAt == 0 {
		t.Error("UpdatedAt should be set")
	}
	if back := snap.Row(); back.InternalID != row.InternalID || back.Email != row.Email {
		t.Errorf("Row() = %+v", back)
	}
	if SnapshotFromRow(nil) != nil {
		t.Error("SnapshotFromRow(nil) should be nil")
	}
}

func TestMinimalSnapshot(t *testing.T) {
	snap := MinimalSnapshot(&LiveSession{OpaqueID: "xyz", Email: "bob@y.com"})
	if snap.Resolved {
		t.Error("minimal snapshot must be unresolved")
	}
	if snap.InternalID.Valid() {
		t.Error("minimal snapshot must not carry an internal id")
	}
	if snap.Username != "bob" {
		t.Errorf("Username = %q, want derived from email", snap.Username)
	}
	if err := snap.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestSnapshot_SameEmail(t *testing.T) {
	snap := &Snapshot{Email: "A@x.com"}
	if !snap.SameEmail(" a@X.COM") {
		t.Error("emails should compare case-insensitively")
	}
	if snap.SameEmail("b@y.com") {
		t.Error("different emails should not match")
	}
	if snap.SameEmail("") {
		t.Error("empty email should not match")
	}
	if (&Snapshot{}).SameEmail("") {
		t.Error("two empty emails should not match")
	}
	var nilSnap *Snapshot
	if nilSnap.SameEmail("a@x.com") {
		t.Error("nil snapshot never matches")
	}
}

func TestSnapshot_BelongsTo(t *testing.T) {
	snap := &Snapshot{InternalID: 42, OpaqueID: "abc", Email: "a@x.com"}
	tests := []struct {
		name string
		live *LiveSession
		want bool
	}{
		{"same email", &LiveSession{OpaqueID: "abc", Email: "A@x.com"}, true},
		{"same email new opaque id", &LiveSession{OpaqueID: "new", Email: "a@x.com"}, true},
		{"other email", &LiveSession{OpaqueID: "abc", Email: "b@x.com"}, false},
		{"no live email same opaque id", &LiveSession{OpaqueID: "abc"}, true},
		{"no live email other opaque id", &LiveSession{OpaqueID: "xyz"}, false},
		{"nil live", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := snap.BelongsTo(tt.live); got != tt.want {
				t.Errorf("BelongsTo() = %v, want %v", got, tt.want)
			}
		})
	}

	noEmail := &Snapshot{OpaqueID: "abc"}
	if !noEmail.BelongsTo(&LiveSession{OpaqueID: "abc", Email: "a@x.com"}) {
		t.Error("snapshot without email should match on opaque id")
	}
}

func TestSnapshot_Validate(t *testing.T) {
	tests := []struct {
		name    string
		snap    Snapshot
		wantErr bool
	}{
		{"empty", Snapshot{}, false},
		{"resolved", Snapshot{InternalID: 1, OpaqueID: "a", Resolved: true}, false},
		{"negative id", Snapshot{InternalID: -1}, true},
		{"blank opaque", Snapshot{OpaqueID: "  "}, true},
		{"resolved without id", Snapshot{Resolved: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.snap.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSnapshot_CloneIsIndependent(t *testing.T) {
	orig := &Snapshot{InternalID: 1, Email: "a@x.com"}
	c := orig.Clone()
	c.Email = "changed"
	if orig.Email != "a@x.com" {
		t.Error("Clone should not alias the original")
	}
}

func TestStatus_String(t *testing.T) {
	if StatusLoading.String() != "loading" || StatusAuthenticated.String() != "authenticated" ||
		StatusUnauthenticated.String() != "unauthenticated" || Status(9).String() != "unknown" {
		t.Error("unexpected status names")
	}
}
