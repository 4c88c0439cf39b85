package httpclient

import "testing"

func TestDefault_hasTimeouts(t *testing.T) {
	c := Default()
	if c.Timeout <= 0 {
		t.Error("Default() client should have a non-zero overall timeout")
	}
}
