package core

import (
	"strings"
	"testing"
)

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name   string
		sample string
		want   rune
	}{
		{
			name:   "comma",
			sample: "serial,time,lat,lon\nC1,2024-01-01 10:00:00,45.1,7.2\nC1,2024-01-01 11:00:00,45.2,7.3\n",
			want:   ',',
		},
		{
			name:   "semicolon with decimal commas",
			sample: "serial;time;lat;lon\nC1;2024-01-01 10:00:00;45,1;7,2\nC1;2024-01-01 11:00:00;45,2;7,3\n",
			want:   ';',
		},
		{
			name:   "tab",
			sample: "serial\ttime\tlat\tlon\nC1\t2024-01-01\t45.1\t7.2\n",
			want:   '\t',
		},
		{
			name:   "pipe",
			sample: "serial|time|lat|lon\nC1|2024-01-01|45.1|7.2\n",
			want:   '|',
		},
		{
			name:   "quoted fields containing commas",
			sample: "serial;note;lat\nC1;\"north, ridge\";45.1\nC2;\"south, valley\";46.0\n",
			want:   ';',
		},
		{
			name:   "header only",
			sample: "Collar ID;Acq. Time [UTC];Latitude [deg];Longitude [deg]\n",
			want:   ';',
		},
		{
			name:   "single column falls back to comma",
			sample: "serial\nC1\nC2\n",
			want:   ',',
		},
		{
			name:   "empty falls back to comma",
			sample: "",
			want:   ',',
		},
		{
			name:   "inconsistent rows fall back to comma",
			sample: "a;b;c\nx\ny;z\nw\n",
			want:   ',',
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SniffDelimiter([]byte(tt.sample)); got != tt.want {
				t.Errorf("SniffDelimiter = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSniff_TruncatedSample(t *testing.T) {
	// The cut-off last line would disagree with the header if it were counted.
	var b strings.Builder
	b.WriteString("serial;time;lat;lon\n")
	for i := 0; i < 5; i++ {
		b.WriteString("C1;2024-01-01 10:00:00;45.1;7.2\n")
	}
	b.WriteString("C1;2024-01")

	if got := sniff([]byte(b.String()), true); got != ';' {
		t.Errorf("sniff = %q, want ';'", got)
	}
}
