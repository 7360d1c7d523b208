package core

import (
	"strings"
)

// Role is one of the four canonical output fields.
type Role int

const (
	RoleSerial Role = iota
	RoleTime
	RoleLatitude
	RoleLongitude
)

// Roles lists every role in output column order.
var Roles = []Role{RoleSerial, RoleTime, RoleLatitude, RoleLongitude}

func (r Role) String() string {
	switch r {
	case RoleSerial:
		return "serial number"
	case RoleTime:
		return "timestamp"
	case RoleLatitude:
		return "latitude"
	case RoleLongitude:
		return "longitude"
	default:
		return "unknown"
	}
}

// roleHints are the lowercase header names each role is recognized by,
// most specific first.
var roleHints = map[Role][]string{
	RoleSerial: {
		"collar id", "serialnumber", "serial", "device_id", "deviceid",
		"id", "collar", "tag_id", "tag-id",
	},
	RoleTime: {
		"acq. time [utc]", "acq. time", "timestamp", "time", "datetime",
		"date_time", "fix_time", "gps_date", "acquisitiontime",
	},
	RoleLatitude:  {"latitude [deg]", "latitude", "lat", "y"},
	RoleLongitude: {"longitude [deg]", "longitude", "lon", "long", "x"},
}

// FieldMapping assigns a source column name to each role. An empty string
// means the role is unassigned.
type FieldMapping struct {
	Serial    string `json:"serial" yaml:"serial"`
	Time      string `json:"time" yaml:"time"`
	Latitude  string `json:"latitude" yaml:"latitude"`
	Longitude string `json:"longitude" yaml:"longitude"`
}

// Column returns the column assigned to role.
func (m FieldMapping) Column(role Role) string {
	switch role {
	case RoleSerial:
		return m.Serial
	case RoleTime:
		return m.Time
	case RoleLatitude:
		return m.Latitude
	case RoleLongitude:
		return m.Longitude
	}
	return ""
}

// Set assigns column to role.
func (m *FieldMapping) Set(role Role, column string) {
	switch role {
	case RoleSerial:
		m.Serial = column
	case RoleTime:
		m.Time = column
	case RoleLatitude:
		m.Latitude = column
	case RoleLongitude:
		m.Longitude = column
	}
}

// Fill returns m with every unassigned role taken from fallback.
func (m FieldMapping) Fill(fallback FieldMapping) FieldMapping {
	for _, role := range Roles {
		if strings.TrimSpace(m.Column(role)) == "" {
			m.Set(role, fallback.Column(role))
		}
	}
	return m
}

// Validate checks that every role has a column. It does not look at any
// table; see Resolve for that.
func (m FieldMapping) Validate() error {
	var missing []Role
	for _, role := range Roles {
		if strings.TrimSpace(m.Column(role)) == "" {
			missing = append(missing, role)
		}
	}
	if len(missing) > 0 {
		return &MappingError{Missing: missing}
	}
	return nil
}

// resolvedColumns holds row positions for each role.
type resolvedColumns struct {
	Serial, Time, Latitude, Longitude int
}

// Resolve finds each mapped column in the table header. Exact names win;
// otherwise a case-insensitive match is accepted.
func (m FieldMapping) Resolve(t *Table) (resolvedColumns, error) {
	if err := m.Validate(); err != nil {
		return resolvedColumns{}, err
	}

	idx := t.Index()
	var unknown []string
	pos := make(map[Role]int, len(Roles))

	for _, role := range Roles {
		name := m.Column(role)
		if i, ok := exactColumn(t.Columns, name); ok {
			pos[role] = i
			continue
		}
		if i, ok := idx[strings.ToLower(strings.TrimSpace(name))]; ok {
			pos[role] = i
			continue
		}
		unknown = append(unknown, name)
	}

	if len(unknown) > 0 {
		return resolvedColumns{}, &MappingError{Unknown: unknown}
	}

	return resolvedColumns{
		Serial:    pos[RoleSerial],
		Time:      pos[RoleTime],
		Latitude:  pos[RoleLatitude],
		Longitude: pos[RoleLongitude],
	}, nil
}

func exactColumn(columns []string, name string) (int, bool) {
	for i, c := range columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// AutoSuggest proposes a mapping from header names alone.
//
// Roles are filled in output order. For each role the hints are tried most
// specific first against the lowercased headers; a column already taken by an
// earlier role is skipped. Roles without a match stay empty. The result is a
// suggestion and is never applied without the caller's consent.
func AutoSuggest(columns []string) FieldMapping {
	lower := make(map[string]string, len(columns))
	for _, c := range columns {
		key := strings.ToLower(strings.TrimSpace(c))
		if _, exists := lower[key]; !exists {
			lower[key] = c
		}
	}

	var m FieldMapping
	taken := make(map[string]bool, len(Roles))

	for _, role := range Roles {
		for _, hint := range roleHints[role] {
			col, ok := lower[hint]
			if !ok || taken[col] {
				continue
			}
			m.Set(role, col)
			taken[col] = true
			break
		}
	}
	return m
}
