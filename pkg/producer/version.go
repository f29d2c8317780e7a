package producer

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// CheckCompatibility reports an error unless serverVersion shares the major
// and minor version of clientVersion.
func CheckCompatibility(serverVersion, clientVersion string) error {
	client, err := semver.NewVersion(clientVersion)
	if err != nil {
		return fmt.Errorf("invalid client version %s: %w", clientVersion, err)
	}

	server, err := semver.NewVersion(serverVersion)
	if err != nil {
		return fmt.Errorf("invalid server version %s: %w", serverVersion, err)
	}

	constraint := fmt.Sprintf("~%d.%d", client.Major(), client.Minor())
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid version constraint %s: %w", constraint, err)
	}

	if !c.Check(server) {
		return fmt.Errorf("server version %s does not satisfy constraint %s", serverVersion, constraint)
	}
	return nil
}
