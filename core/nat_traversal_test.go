package core

import "testing"

func TestParseListenPort(t *testing.T) {
	cases := []struct {
		addr    string
		want    int
		wantErr bool
	}{
		{addr: "0.0.0.0:8333", want: 8333},
		{addr: ":8333", want: 8333},
		{addr: "[::]:18333", want: 18333},
		{addr: "not-an-address", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseListenPort(tc.addr)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseListenPort(%q): expected error", tc.addr)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseListenPort(%q): unexpected error: %v", tc.addr, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseListenPort(%q) = %d, want %d", tc.addr, got, tc.want)
		}
	}
}
