/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package docker

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/docker/docker/api/types/build"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	builtMarker  = "Successfully built"
	taggedMarker = "Successfully tagged"
)

// buildEvent is one JSON line of the engine build stream.
type buildEvent struct {
	Stream      string `json:"stream"`
	Error       string `json:"error"`
	ErrorDetail struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
}

// BuildImageFromTar streams a tar build context to the engine and follows the
// build to completion. The stream is parsed as an explicit state machine with
// three terminal outcomes: the success marker was seen, an error line was
// seen, or the stream ended without either (also a failure). A missing tag
// marker is only a warning.
func (d *Driver) BuildImageFromTar(ctx context.Context, buildContext io.Reader, tag string) error {
	resp, err := d.cli.ImageBuild(ctx, buildContext, build.ImageBuildOptions{
		Tags:        []string{tag},
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to start image build for %s", tag)
	}
	defer resp.Body.Close()
	return followBuildStream(resp.Body, tag)
}

func followBuildStream(body io.Reader, tag string) error {
	var built, tagged bool
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event buildEvent
		if err := json.Unmarshal(line, &event); err != nil {
			klog.V(4).Infof("skipping unparseable build line: %s", string(line))
			continue
		}
		if event.Error != "" || event.ErrorDetail.Message != "" {
			message := event.ErrorDetail.Message
			if message == "" {
				message = event.Error
			}
			return errors.Errorf("image build failed for %s: %s", tag, message)
		}
		if strings.Contains(event.Stream, builtMarker) {
			built = true
		}
		if strings.Contains(event.Stream, taggedMarker) {
			tagged = true
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "build stream for %s ended abnormally", tag)
	}
	if !built {
		return errors.Errorf("build stream for %s ended without a success marker", tag)
	}
	if !tagged {
		klog.Warningf("build for %s finished without a tag confirmation", tag)
	}
	klog.Infof("built image %s", tag)
	return nil
}
