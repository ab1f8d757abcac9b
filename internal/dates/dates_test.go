package dates

import "testing"

func TestNormalizeDefaultLayout(t *testing.T) {
	p := NewParser("", "")

	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"22-10-2024", "2024-10-22", false},
		{"18-10-2024", "2024-10-18", false},
		{"1-2-2024", "2024-02-01", false},
		{"29-02-2024", "2024-02-29", false},
		{"29-02-2023", "", true},
		{"2024-10-22", "", true},
		{"22/10/2024", "", true},
		{"32-01-2024", "", true},
		{"", "", true},
		{" 22-10-2024", "", true},
		{"22-10-2024 ", "", true},
	}
	for _, tc := range cases {
		got, err := p.Normalize(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Normalize(%q) = %q, want error", tc.in, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("Normalize(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestCustomLayout(t *testing.T) {
	p := NewParser("01/02/2006", "m/d/Y")
	got, err := p.Normalize("10/22/2024")
	if err != nil || got != "2024-10-22" {
		t.Fatalf("Normalize = %q, %v", got, err)
	}
	if p.DisplayFormat() != "m/d/Y" {
		t.Fatalf("display = %q", p.DisplayFormat())
	}
	if _, err := p.Normalize("22-10-2024"); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestDisplayDefaults(t *testing.T) {
	if got := NewParser("", "").DisplayFormat(); got != DefaultDisplay {
		t.Fatalf("display = %q", got)
	}
	if got := NewParser("2006.01.02", "").DisplayFormat(); got != "2006.01.02" {
		t.Fatalf("display = %q", got)
	}
}
