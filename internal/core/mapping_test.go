package core

import (
	"errors"
	"reflect"
	"testing"
)

func TestAutoSuggest(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		want    FieldMapping
	}{
		{
			name:    "vendor export headers",
			columns: []string{"No", "Collar ID", "Acq. Time [UTC]", "Latitude [deg]", "Longitude [deg]", "Height [m]"},
			want:    FieldMapping{Serial: "Collar ID", Time: "Acq. Time [UTC]", Latitude: "Latitude [deg]", Longitude: "Longitude [deg]"},
		},
		{
			name:    "short names any case",
			columns: []string{"SERIAL", "Timestamp", "LAT", "Lon"},
			want:    FieldMapping{Serial: "SERIAL", Time: "Timestamp", Latitude: "LAT", Longitude: "Lon"},
		},
		{
			name:    "most specific hint wins",
			columns: []string{"id", "collar id", "time", "acq. time", "lat", "latitude", "x", "longitude"},
			want:    FieldMapping{Serial: "collar id", Time: "acq. time", Latitude: "latitude", Longitude: "longitude"},
		},
		{
			name:    "projected coordinates",
			columns: []string{"tag_id", "gps_date", "y", "x"},
			want:    FieldMapping{Serial: "tag_id", Time: "gps_date", Latitude: "y", Longitude: "x"},
		},
		{
			name:    "unmatched roles stay empty",
			columns: []string{"device", "when", "lat"},
			want:    FieldMapping{Latitude: "lat"},
		},
		{
			name:    "no columns",
			columns: nil,
			want:    FieldMapping{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AutoSuggest(tt.columns); got != tt.want {
				t.Errorf("AutoSuggest = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAutoSuggest_ColumnUsedOnce(t *testing.T) {
	got := AutoSuggest([]string{"id", "time", "lat", "lon"})
	seen := map[string]bool{}
	for _, role := range Roles {
		col := got.Column(role)
		if col == "" {
			continue
		}
		if seen[col] {
			t.Errorf("column %q assigned to more than one role", col)
		}
		seen[col] = true
	}
}

func TestFieldMapping_Validate(t *testing.T) {
	full := FieldMapping{Serial: "s", Time: "t", Latitude: "la", Longitude: "lo"}
	if err := full.Validate(); err != nil {
		t.Fatalf("complete mapping: unexpected error %v", err)
	}

	partial := FieldMapping{Serial: "s", Latitude: "  "}
	err := partial.Validate()
	var me *MappingError
	if !errors.As(err, &me) {
		t.Fatalf("error = %v, want *MappingError", err)
	}
	want := []Role{RoleTime, RoleLatitude, RoleLongitude}
	if !reflect.DeepEqual(me.Missing, want) {
		t.Errorf("Missing = %v, want %v", me.Missing, want)
	}
}

func TestFieldMapping_Resolve(t *testing.T) {
	tbl := &Table{Columns: []string{"Collar ID", "Time", "time", "Lat", "Lon"}}

	tests := []struct {
		name        string
		mapping     FieldMapping
		want        resolvedColumns
		wantUnknown []string
	}{
		{
			name:    "exact names",
			mapping: FieldMapping{Serial: "Collar ID", Time: "time", Latitude: "Lat", Longitude: "Lon"},
			want:    resolvedColumns{Serial: 0, Time: 2, Latitude: 3, Longitude: 4},
		},
		{
			name:    "case insensitive fallback",
			mapping: FieldMapping{Serial: "collar id", Time: "TIME", Latitude: "lat", Longitude: "LON"},
			want:    resolvedColumns{Serial: 0, Time: 1, Latitude: 3, Longitude: 4},
		},
		{
			name:        "unknown columns",
			mapping:     FieldMapping{Serial: "Collar ID", Time: "Time", Latitude: "Latitude", Longitude: "Longitude"},
			wantUnknown: []string{"Latitude", "Longitude"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.mapping.Resolve(tbl)
			if tt.wantUnknown != nil {
				var me *MappingError
				if !errors.As(err, &me) {
					t.Fatalf("error = %v, want *MappingError", err)
				}
				if !reflect.DeepEqual(me.Unknown, tt.wantUnknown) {
					t.Errorf("Unknown = %v, want %v", me.Unknown, tt.wantUnknown)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRoleString(t *testing.T) {
	want := []string{"serial number", "timestamp", "latitude", "longitude"}
	for i, role := range Roles {
		if got := role.String(); got != want[i] {
			t.Errorf("Role(%d).String() = %q, want %q", role, got, want[i])
		}
	}
}

func TestFieldMapping_Fill(t *testing.T) {
	m := FieldMapping{Serial: "tag", Time: " "}
	got := m.Fill(FieldMapping{Serial: "id", Time: "when", Latitude: "lat"})
	want := FieldMapping{Serial: "tag", Time: "when", Latitude: "lat"}
	if got != want {
		t.Errorf("Fill = %+v, want %+v", got, want)
	}
}
