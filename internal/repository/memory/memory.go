// Package memory provides process-local implementations of the repository
// ports. They back development setups and tests, and the challenge store is
// also a production option for single-instance deployments.
package memory

import "time"

type clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}
