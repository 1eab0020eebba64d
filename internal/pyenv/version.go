package pyenv

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a Python interpreter version.
type Version struct {
	Major int
	Minor int
	Patch int
}

// String formats the version as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or +1 depending on whether v is lower than, equal
// to or higher than other.
func (v Version) Compare(other Version) int {
	switch {
	case v.Major != other.Major:
		return cmpInt(v.Major, other.Major)
	case v.Minor != other.Minor:
		return cmpInt(v.Minor, other.Minor)
	default:
		return cmpInt(v.Patch, other.Patch)
	}
}

// AtLeast reports whether v >= min.
func (v Version) AtLeast(min Version) bool {
	return v.Compare(min) >= 0
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// ParseVersion parses "3", "3.7", "3.11.4" and the output of
// "python --version" ("Python 3.11.4"). Pre-release suffixes on a
// component ("0rc1") are ignored.
func ParseVersion(s string) (Version, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(raw, "Python ")
	if raw == "" {
		return Version{}, fmt.Errorf("invalid version %q: empty", s)
	}

	parts := strings.Split(raw, ".")
	if len(parts) > 3 {
		return Version{}, fmt.Errorf("invalid version %q: too many components", s)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		digits := leadingDigits(p)
		if digits == "" {
			return Version{}, fmt.Errorf("invalid version %q: component %q is not a number", s, p)
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func leadingDigits(s string) string {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:end]
}
