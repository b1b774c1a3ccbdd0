package version

import "fmt"

// Flag contains extra info about the version. It is helpul for tracking
// versions while developing. It should always by empty on the master branch.
// This will be inforced in a continuous integration test.
const Flag = ""

var (
	// Version is The full version string
	Version = "0.1.0"

	// GitCommit is set with --ldflags "-X main.gitCommit=$(git rev-parse HEAD)"
	GitCommit string
)

func init() {
	if Flag != "" {
		Version += "-" + Flag
	}

	if GitCommit != "" {
		Version += "-" + GitCommit[:8]
	}
}

// UserAgent returns the user agent advertised in version messages, in the
// /name:version/ form used on the network. base is an optional prefix such
// as "/murmur/", to which the version is added.
func UserAgent(base string) string {
	if base == "" || base == "/" {
		return fmt.Sprintf("/murmur:%s/", Version)
	}
	return fmt.Sprintf("%s:%s/", trimSlash(base), Version)
}

func trimSlash(s string) string {
	if len(s) > 0 && s[len(s)-1] == '/' {
		return s[:len(s)-1]
	}
	return s
}
