package pagination

import "testing"

func TestClampPageSize(t *testing.T) {
	cfg := PageSizeConfig{Default: 10, Max: 50}
	tests := []struct {
		in   int
		want int
	}{
		{in: 0, want: 10},
		{in: -3, want: 10},
		{in: 20, want: 20},
		{in: 500, want: 50},
	}
	for _, tc := range tests {
		if got := ClampPageSize(tc.in, cfg); got != tc.want {
			t.Errorf("ClampPageSize(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if got := ClampPageSize(0, PageSizeConfig{}); got != 1 {
		t.Fatalf("ClampPageSize with zero config = %d, want 1", got)
	}
}

func TestIDTokenRoundTrip(t *testing.T) {
	token := EncodeIDToken(42)
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	got, err := DecodeIDToken(token)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if got != 42 {
		t.Fatalf("decoded id = %d, want 42", got)
	}
}

func TestDecodeIDTokenRejectsGarbage(t *testing.T) {
	for _, token := range []string{"!!!", "LTE", "YWJj"} {
		if _, err := DecodeIDToken(token); err == nil {
			t.Errorf("DecodeIDToken(%q) expected error", token)
		}
	}
	if id, err := DecodeIDToken(" "); err != nil || id != 0 {
		t.Fatalf("DecodeIDToken(blank) = %d, %v; want 0, nil", id, err)
	}
}
