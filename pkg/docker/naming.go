/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package docker

import (
	"fmt"
	"strings"
	"time"
)

// Naming rules for managed resources. Deterministic given their inputs;
// service names stay under the 63-char engine limit because env names are
// capped at 32 chars by validation and job ids at 16.

// ServiceName is the Swarm service name of a deployment.
func ServiceName(envName, jobId string) string {
	return fmt.Sprintf("job_%s_%s", envName, jobId)
}

// VolumeName expands a logical volume name to its managed form.
func VolumeName(envName, logicalName string) string {
	return fmt.Sprintf("vol_%s_%s", envName, logicalName)
}

// ImageName is the generated image name for a Git build. Docker image
// references must be lowercase.
func ImageName(envName string, now time.Time) string {
	return fmt.Sprintf("img_%s_%d", strings.ToLower(envName), now.Unix())
}

// OverlayName is the overlay network name of an environment. The millisecond
// suffix keeps names unique across rapid recreations of one logical name.
func OverlayName(envName string, now time.Time) string {
	return fmt.Sprintf("overlay_env_%s_%d", envName, now.UnixMilli())
}
