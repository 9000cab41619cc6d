package plugins

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// APIVersion is the plugin API this build exposes. Plugins declare the API
// they were written against; a different major version is incompatible.
const APIVersion = "1.0"

// Compatible reports whether a plugin written against apiVersion can run on
// this build. Majors must match; minors are forward compatible.
func Compatible(apiVersion string) bool {
	host, err := semver.NewVersion(strings.TrimPrefix(APIVersion, "v"))
	if err != nil {
		return false
	}
	want, err := semver.NewVersion(strings.TrimPrefix(apiVersion, "v"))
	if err != nil {
		return false
	}
	return host.Major() == want.Major() && want.Minor() <= host.Minor()
}

// CompareVersions orders two version strings semantically, returning -1, 0
// or 1.
func CompareVersions(v1, v2 string) (int, error) {
	a, err := semver.NewVersion(strings.TrimPrefix(v1, "v"))
	if err != nil {
		return 0, err
	}
	b, err := semver.NewVersion(strings.TrimPrefix(v2, "v"))
	if err != nil {
		return 0, err
	}
	return a.Compare(b), nil
}
