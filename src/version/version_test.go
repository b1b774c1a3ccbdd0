// +build !unit

package version

import "testing"

// TestFlagEmpty fails if version.Flag is not empty. We use this internally to
// enforce an empty flag on the master branch. This is an arbitrary rule we use
// in Mosaic Networks to differentiate between dev code and production code.
func TestFlagEmpty(t *testing.T) {
	if len(Flag) > 0 {
		t.Fatalf("Version Flag is not empty: %s", Flag)
	}
}

func TestUserAgent(t *testing.T) {
	cases := map[string]string{
		"":         "/murmur:" + Version + "/",
		"/murmur/": "/murmur:" + Version + "/",
		"/relay":   "/relay:" + Version + "/",
	}
	for base, exp := range cases {
		if ua := UserAgent(base); ua != exp {
			t.Fatalf("UserAgent(%q) should be %s, not %s", base, exp, ua)
		}
	}
}
