package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
)

// CheckSchemaCompatibility checks whether a reader built for readerVersion can
// consume an artifact stamped with artifactVersion.
//
// Compatibility Rules:
//   - Major versions must match exactly
//   - The artifact's minor version must not be newer than the reader's
//   - Patch versions can differ
//
// Examples:
//   - Reader 1.2.0, Artifact 1.2.0 -> OK
//   - Reader 1.2.0, Artifact 1.1.7 -> OK (older minor only adds nothing the reader lacks)
//   - Reader 1.2.0, Artifact 1.3.0 -> ERROR (artifact has columns the reader does not know)
//   - Reader 2.0.0, Artifact 1.2.0 -> ERROR (major differs)
func CheckSchemaCompatibility(readerVersion, artifactVersion string) error {
	readerVersion = strings.TrimPrefix(readerVersion, "v")
	artifactVersion = strings.TrimPrefix(artifactVersion, "v")

	if artifactVersion == "" {
		return errors.New(errors.ErrCodeVersionMismatch, "artifact carries no schema version")
	}

	reader, err := semver.NewVersion(readerVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid reader schema version '%s'", readerVersion)
	}

	artifact, err := semver.NewVersion(artifactVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid artifact schema version '%s'", artifactVersion)
	}

	if reader.Major() != artifact.Major() {
		return errors.Newf(errors.ErrCodeVersionMismatch, "major version mismatch: reader is %d.x.x but artifact is %d.x.x",
			reader.Major(), artifact.Major())
	}

	if artifact.Minor() > reader.Minor() {
		return errors.Newf(errors.ErrCodeVersionMismatch, "minor version mismatch: reader is %d.%d.x but artifact is %d.%d.x",
			reader.Major(), reader.Minor(), artifact.Major(), artifact.Minor())
	}

	return nil
}
