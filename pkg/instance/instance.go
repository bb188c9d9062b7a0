package instance

import "github.com/courseshare/courseshare-backend/pkg/env"

// GetID returns the process instance identifier attached to every log line.
// COURSESHARE_INSTANCE_ID wins over the Cloud Run revision name.
func GetID() string {
	return env.First("api-0", "COURSESHARE_INSTANCE_ID", "K_REVISION")
}
