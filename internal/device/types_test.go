package device

import (
	"encoding/json"
	"errors"
	"io"
	"testing"
)

func TestPermissionAllows(t *testing.T) {
	// Every permission against every access intent.
	tests := []struct {
		perm Permission
		mode Mode
		want bool
	}{
		{ReadOnly, ModeRead, true},
		{ReadOnly, ModeWrite, false},
		{ReadOnly, ModeReadWrite, false},
		{WriteOnly, ModeRead, false},
		{WriteOnly, ModeWrite, true},
		{WriteOnly, ModeReadWrite, false},
		{ReadWrite, ModeRead, true},
		{ReadWrite, ModeWrite, true},
		{ReadWrite, ModeReadWrite, true},
	}

	for _, tt := range tests {
		t.Run(tt.perm.String()+"/"+tt.mode.String(), func(t *testing.T) {
			if got := tt.perm.Allows(tt.mode); got != tt.want {
				t.Errorf("%s.Allows(%s) = %v, want %v", tt.perm, tt.mode, got, tt.want)
			}
		})
	}
}

func TestPermissionAllows_InvalidValues(t *testing.T) {
	for _, p := range AllPermissions() {
		if p.Allows(Mode(0)) {
			t.Errorf("%s.Allows(0) = true, want false", p)
		}
		if p.Allows(Mode(7)) {
			t.Errorf("%s.Allows(7) = true, want false", p)
		}
	}
	if Permission(0).Allows(ModeRead) {
		t.Error("Permission(0).Allows(read) = true, want false")
	}
}

func TestPermissionBits(t *testing.T) {
	if ReadOnly != 0b01 || WriteOnly != 0b10 || ReadWrite != 0b11 {
		t.Errorf("permission bits = %b/%b/%b, want 01/10/11", ReadOnly, WriteOnly, ReadWrite)
	}
}

func TestParsePermission(t *testing.T) {
	tests := []struct {
		input   string
		want    Permission
		wantErr bool
	}{
		{"ro", ReadOnly, false},
		{"RO", ReadOnly, false},
		{"read_only", ReadOnly, false},
		{"wo", WriteOnly, false},
		{"write_only", WriteOnly, false},
		{"rw", ReadWrite, false},
		{" rw ", ReadWrite, false},
		{"read_write", ReadWrite, false},
		{"", 0, true},
		{"rwx", 0, true},
		{"execute", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePermission(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDescriptor) {
					t.Errorf("ParsePermission(%q) error = %v, want ErrInvalidDescriptor", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePermission(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParsePermission(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestPermissionJSON(t *testing.T) {
	d := Descriptor{Identity: "PLFDEV0002", Capacity: 512, Permission: WriteOnly}

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"identity":"PLFDEV0002","capacity":512,"permission":"wo"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var got Descriptor
	if err := json.Unmarshal([]byte(`{"identity":"x","capacity":1,"permission":"read_write"}`), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Permission != ReadWrite {
		t.Errorf("Unmarshal() permission = %s, want rw", got.Permission)
	}

	if _, err := json.Marshal(Descriptor{Permission: Permission(0)}); err == nil {
		t.Error("Marshal() with invalid permission succeeded, want error")
	}
}

func TestModeCapabilities(t *testing.T) {
	tests := []struct {
		mode      Mode
		wantRead  bool
		wantWrite bool
	}{
		{ModeRead, true, false},
		{ModeWrite, false, true},
		{ModeReadWrite, true, true},
		{Mode(0), false, false},
		{Mode(4), false, false},
	}

	for _, tt := range tests {
		if got := tt.mode.CanRead(); got != tt.wantRead {
			t.Errorf("%s.CanRead() = %v, want %v", tt.mode, got, tt.wantRead)
		}
		if got := tt.mode.CanWrite(); got != tt.wantWrite {
			t.Errorf("%s.CanWrite() = %v, want %v", tt.mode, got, tt.wantWrite)
		}
	}
}

func TestWhenceMatchesIO(t *testing.T) {
	if SeekStart != io.SeekStart || SeekCurrent != io.SeekCurrent || SeekEnd != io.SeekEnd {
		t.Error("Whence values do not match io.Seek* constants")
	}
}
