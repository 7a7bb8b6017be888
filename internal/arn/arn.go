// Package arn parses the AWS region out of an agent runtime ARN, the
// one piece of the ARN corral actually needs.
package arn

import (
	"fmt"
	"strings"
)

// ParseRegion extracts the region field from an ARN of the form
// "arn:<partition>:<service>:<region>:<account>:<resource>". The region
// field MUST be non-empty; anything else is a configuration error.
func ParseRegion(raw string) (string, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 4 || parts[3] == "" {
		return "", fmt.Errorf("invalid ARN format, cannot extract region: %s", raw)
	}
	return parts[3], nil
}
