package version

import "testing"

func setBuildInfo(t *testing.T, version, major, minor, patch, built, commit string) {
	t.Helper()
	previous := []string{Version, Major, Minor, Patch, Built, GitCommit}
	t.Cleanup(func() {
		Version, Major, Minor, Patch, Built, GitCommit = previous[0], previous[1], previous[2], previous[3], previous[4], previous[5]
	})
	Version, Major, Minor, Patch, Built, GitCommit = version, major, minor, patch, built, commit
}

func TestGetVersionInfo(t *testing.T) {
	setBuildInfo(t, "1.2.3", "1", "2", "3", "2026-01-11T12:34:56Z", "abc123def456")

	info := GetVersionInfo()
	if info.Version != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %q", info.Version)
	}
	if info.Major != 1 || info.Minor != 2 || info.Patch != 3 {
		t.Fatalf("expected 1.2.3, got %d.%d.%d", info.Major, info.Minor, info.Patch)
	}
	if info.Built != "2026-01-11T12:34:56Z" {
		t.Fatalf("expected built timestamp to be preserved, got %q", info.Built)
	}
	if got := info.String(); got != "1.2.3 (abc123d)" {
		t.Fatalf("expected short commit suffix, got %q", got)
	}
}

func TestGetVersionInfoInvalidNumbers(t *testing.T) {
	setBuildInfo(t, "dev", "x", "-1", "", "", "")

	info := GetVersionInfo()
	if info.Major != 0 || info.Minor != 0 || info.Patch != 0 {
		t.Fatalf("expected zeroes, got %d.%d.%d", info.Major, info.Minor, info.Patch)
	}
	if info.String() != "dev" {
		t.Fatalf("expected plain version, got %q", info.String())
	}
}
