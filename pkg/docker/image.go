/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package docker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/image"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// pullEvent is the subset of the engine's progress stream we care about.
type pullEvent struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// PullImage pulls image:tag through the engine, following the progress stream
// to completion. The call blocks until the pull finishes or fails.
func (d *Driver) PullImage(ctx context.Context, img, tag string) error {
	ref := img
	if tag != "" {
		ref = fmt.Sprintf("%s:%s", img, tag)
	}
	reader, err := d.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return errors.Wrapf(err, "failed to pull image %s", ref)
	}
	defer reader.Close()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var event pullEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		if event.Error != "" {
			return errors.Errorf("failed to pull image %s: %s", ref, event.Error)
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return errors.Wrapf(err, "pull stream for %s ended abnormally", ref)
	}
	klog.Infof("pulled image %s", ref)
	return nil
}
