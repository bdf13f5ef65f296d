package deps

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlatformMatches(t *testing.T) {
	linux := DefaultPlatform()

	tests := []struct {
		name string
		v    PackumentVersion
		want bool
	}{
		{"no restrictions", PackumentVersion{}, true},
		{"empty lists", PackumentVersion{OS: []string{}, CPU: []string{}, Libc: []string{}}, true},
		{"os listed", PackumentVersion{OS: []string{"darwin", "linux"}}, true},
		{"os not listed", PackumentVersion{OS: []string{"darwin", "win32"}}, false},
		{"negated other os", PackumentVersion{OS: []string{"!win32"}}, true},
		{"negated target os", PackumentVersion{OS: []string{"!linux"}}, false},
		{"cpu mismatch", PackumentVersion{CPU: []string{"arm64"}}, false},
		{"cpu match", PackumentVersion{CPU: []string{"x64", "arm64"}}, true},
		{"libc musl only", PackumentVersion{OS: []string{"linux"}, CPU: []string{"x64"}, Libc: []string{"musl"}}, false},
		{"libc glibc", PackumentVersion{OS: []string{"linux"}, CPU: []string{"x64"}, Libc: []string{"glibc"}}, true},
		{"all axes must pass", PackumentVersion{OS: []string{"linux"}, CPU: []string{"ia32"}}, false},
		{"negated target plus other negation", PackumentVersion{OS: []string{"!linux", "!darwin"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, linux.Matches(&tt.v))
		})
	}
}

func TestPlatformMatchesOtherTarget(t *testing.T) {
	mac := Platform{OS: "darwin", CPU: "arm64", Libc: ""}
	require.True(t, mac.Matches(&PackumentVersion{OS: []string{"darwin"}, CPU: []string{"arm64"}}))
	require.False(t, mac.Matches(&PackumentVersion{OS: []string{"linux"}}))
	require.False(t, mac.Matches(&PackumentVersion{Libc: []string{"glibc"}}))
}

func TestParsePlatform(t *testing.T) {
	require.Equal(t, DefaultPlatform(), ParsePlatform(""))
	require.Equal(t, Platform{OS: "darwin", CPU: "arm64", Libc: "glibc"}, ParsePlatform("darwin/arm64"))
	require.Equal(t, Platform{OS: "linux", CPU: "x64", Libc: "musl"}, ParsePlatform("linux/x64/musl"))
	require.Equal(t, Platform{OS: "linux", CPU: "arm", Libc: "glibc"}, ParsePlatform("/arm"))
	require.Equal(t, "linux/x64/glibc", DefaultPlatform().String())
}
