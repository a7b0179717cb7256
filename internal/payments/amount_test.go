package payments

import "testing"

func TestParseAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "50.00", want: 5000},
		{in: "50", want: 5000},
		{in: "0.5", want: 50},
		{in: ".99", want: 99},
		{in: " 10.25 ", want: 1025},
		{in: "10.255", wantErr: true},
		{in: "-1.00", wantErr: true},
		{in: "1.", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q): expected error, got %d", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAmount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	t.Parallel()

	if got := FormatAmount(5000); got != "50.00" {
		t.Fatalf("FormatAmount(5000) = %s", got)
	}
	if got := FormatAmount(-105); got != "-1.05" {
		t.Fatalf("FormatAmount(-105) = %s", got)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	if _, err := r.Get("stripe"); err == nil {
		t.Fatalf("expected unknown provider error")
	}
}
