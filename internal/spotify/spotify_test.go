package spotify

import "testing"

func TestJoinComma(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"Daft Punk"}, "Daft Punk"},
		{[]string{"Daft Punk", "Pharrell Williams"}, "Daft Punk, Pharrell Williams"},
	}
	for _, c := range cases {
		if got := joinComma(c.in); got != c.want {
			t.Errorf("joinComma(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
