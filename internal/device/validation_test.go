package device

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateDescriptor(t *testing.T) {
	tests := []struct {
		name        string
		desc        Descriptor
		maxCapacity int
		wantErr     bool
	}{
		{
			name: "valid read-only",
			desc: Descriptor{Identity: "1024_BYTE_RONLY_MEM", Capacity: 1024, Permission: ReadOnly},
		},
		{
			name:        "capacity at limit",
			desc:        Descriptor{Identity: "dev", Capacity: 4096, Permission: ReadWrite},
			maxCapacity: 4096,
		},
		{
			name:        "capacity over limit",
			desc:        Descriptor{Identity: "dev", Capacity: 4097, Permission: ReadWrite},
			maxCapacity: 4096,
			wantErr:     true,
		},
		{
			name: "no limit",
			desc: Descriptor{Identity: "dev", Capacity: 8 << 20, Permission: WriteOnly},
		},
		{
			name:    "zero capacity",
			desc:    Descriptor{Identity: "dev", Capacity: 0, Permission: ReadWrite},
			wantErr: true,
		},
		{
			name:    "negative capacity",
			desc:    Descriptor{Identity: "dev", Capacity: -1, Permission: ReadWrite},
			wantErr: true,
		},
		{
			name:    "unknown permission",
			desc:    Descriptor{Identity: "dev", Capacity: 1, Permission: Permission(0)},
			wantErr: true,
		},
		{
			name:    "missing identity",
			desc:    Descriptor{Capacity: 1, Permission: ReadOnly},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDescriptor(tt.desc, tt.maxCapacity)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDescriptor) {
					t.Errorf("ValidateDescriptor() error = %v, want ErrInvalidDescriptor", err)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateDescriptor() error = %v, want nil", err)
			}
		})
	}
}

func TestValidateIdentity(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"serial", "PLFDEV0000", false},
		{"with underscores", "512_BYTE_WONLY_MEM", false},
		{"at max length", strings.Repeat("a", maxIdentityLength), false},
		{"empty", "", true},
		{"exceeds max length", strings.Repeat("a", maxIdentityLength+1), true},
		{"contains space", "my device", true},
		{"contains slash", "dev/0", true},
		{"contains plus", "dev+", true},
		{"contains hash", "dev#", true},
		{"control char", "dev\x00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentity(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentity(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
