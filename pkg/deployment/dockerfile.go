/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package deployment

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultBaseImage  = "node:20-alpine"
	defaultInstallCmd = "yarn install"
	defaultBranch     = "main"
	defaultExposePort = 3000
)

var defaultStartCmd = []string{"yarn", "start"}

// buildPlan is the resolved input of Dockerfile generation.
type buildPlan struct {
	BaseImage  string
	GitUrl     string
	Branch     string
	InstallCmd string
	BuildCmd   string
	StartCmd   string
}

func newBuildPlan(req *GitRequest) buildPlan {
	plan := buildPlan{
		BaseImage:  req.BaseImage,
		GitUrl:     req.GitUrl,
		Branch:     req.Branch,
		InstallCmd: req.InstallCommand,
		BuildCmd:   req.BuildCommand,
		StartCmd:   req.StartCommand,
	}
	if plan.BaseImage == "" {
		plan.BaseImage = defaultBaseImage
	}
	if plan.Branch == "" {
		plan.Branch = defaultBranch
	}
	if plan.InstallCmd == "" {
		plan.InstallCmd = defaultInstallCmd
	}
	return plan
}

// generateDockerfile renders the synthetic build recipe: install git with the
// distro's package manager, clone the branch, drop to a non-root user, run the
// install and build commands, expose the default port and start.
func generateDockerfile(plan buildPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FROM %s\n\n", plan.BaseImage)

	if isAlpine(plan.BaseImage) {
		b.WriteString("RUN apk add --no-cache git\n\n")
	} else {
		b.WriteString("RUN apt-get update && apt-get install -y git && rm -rf /var/lib/apt/lists/*\n\n")
	}

	b.WriteString("WORKDIR /app\n")
	fmt.Fprintf(&b, "RUN git clone --depth 1 --branch %s %s .\n\n", plan.Branch, plan.GitUrl)

	if isAlpine(plan.BaseImage) {
		b.WriteString("RUN addgroup -S appuser && adduser -S appuser -G appuser && chown -R appuser:appuser /app\n")
	} else {
		b.WriteString("RUN useradd --create-home appuser && chown -R appuser:appuser /app\n")
	}
	b.WriteString("USER appuser\n\n")

	install := plan.InstallCmd
	if plan.BuildCmd != "" {
		install = install + " && " + plan.BuildCmd
	}
	fmt.Fprintf(&b, "RUN %s\n\n", install)

	fmt.Fprintf(&b, "EXPOSE %d\n", defaultExposePort)
	fmt.Fprintf(&b, "CMD %s\n", argvJSON(plan.StartCmd))
	return b.String()
}

// argvJSON renders a shell-ish command line as the JSON argv form of CMD.
// Whitespace splitting is deliberate; quoted arguments are out of scope for
// the generated recipes.
func argvJSON(cmd string) string {
	argv := strings.Fields(cmd)
	if len(argv) == 0 {
		argv = defaultStartCmd
	}
	b, _ := json.Marshal(argv)
	return string(b)
}

// buildContextTar packs the Dockerfile into a single-file tar stream for the
// engine build endpoint.
func buildContextTar(dockerfile string) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{
		Name:    "Dockerfile",
		Mode:    0o644,
		Size:    int64(len(dockerfile)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, errors.Wrap(err, "failed to write build context header")
	}
	if _, err := tw.Write([]byte(dockerfile)); err != nil {
		return nil, errors.Wrap(err, "failed to write build context")
	}
	if err := tw.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to finalize build context")
	}
	return &buf, nil
}

func isAlpine(baseImage string) bool {
	return strings.Contains(strings.ToLower(baseImage), "alpine")
}
