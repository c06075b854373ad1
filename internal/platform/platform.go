package platform

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Kind is one of the supported host families.
type Kind string

const (
	Linux   Kind = "linux"
	Darwin  Kind = "darwin"
	Windows Kind = "windows"
)

// ErrUnsupportedPlatform is matched by every UnsupportedPlatformError.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// UnsupportedPlatformError names the host identifier that matched no family.
type UnsupportedPlatformError struct {
	ID string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform: %q", e.ID)
}

func (e *UnsupportedPlatformError) Is(target error) bool {
	return target == ErrUnsupportedPlatform
}

// prefixes maps identifier prefixes (uname -s, $OSTYPE, GOOS) to a family.
var prefixes = []struct {
	prefix string
	kind   Kind
}{
	{"linux", Linux},
	{"darwin", Darwin},
	{"cygwin", Windows},
	{"mingw", Windows},
	{"msys", Windows},
	{"win32", Windows},
	{"windows", Windows},
}

// HostID returns the identifier of the running host.
func HostID() string {
	return runtime.GOOS
}

// Detect maps a host identifier such as "Linux", "Darwin", "MINGW64_NT-10.0" or
// "linux-gnu" onto a Kind.
func Detect(id string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(id))
	if normalized != "" {
		for _, p := range prefixes {
			if strings.HasPrefix(normalized, p.prefix) {
				return p.kind, nil
			}
		}
	}
	return "", &UnsupportedPlatformError{ID: id}
}
