package versions

import "github.com/Masterminds/semver/v3"

// IsNewerVersion reports whether newVersion is strictly greater than oldVersion.
// It uses semantic versioning for comparison when both strings are valid semver,
// and falls back to lexicographic string comparison otherwise.
func IsNewerVersion(newVersion, oldVersion string) bool {
	newSemver, errNew := semver.NewVersion(newVersion)
	oldSemver, errOld := semver.NewVersion(oldVersion)

	if errNew != nil || errOld != nil {
		return newVersion > oldVersion
	}

	return newSemver.GreaterThan(oldSemver)
}

// IsDowngrade reports whether replacing a snapshot at currentVersion with one
// at candidateVersion would move backwards. Unversioned snapshots never count
// as a downgrade.
func IsDowngrade(candidateVersion, currentVersion string) bool {
	if candidateVersion == "" || currentVersion == "" {
		return false
	}
	return IsNewerVersion(currentVersion, candidateVersion)
}
