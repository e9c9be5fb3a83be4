/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package deployment

import (
	"archive/tar"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDockerfileAlpine(t *testing.T) {
	plan := newBuildPlan(&GitRequest{
		GitUrl:    "https://github.com/acme/app.git",
		Branch:    "release",
		BaseImage: "node:20-alpine",
	})
	dockerfile := generateDockerfile(plan)

	assert.Contains(t, dockerfile, "FROM node:20-alpine")
	assert.Contains(t, dockerfile, "apk add --no-cache git")
	assert.NotContains(t, dockerfile, "apt-get")
	assert.Contains(t, dockerfile, "git clone --depth 1 --branch release https://github.com/acme/app.git .")
	assert.Contains(t, dockerfile, "adduser -S appuser")
	assert.Contains(t, dockerfile, "USER appuser")
	assert.Contains(t, dockerfile, "RUN yarn install")
	assert.Contains(t, dockerfile, "EXPOSE 3000")
	assert.Contains(t, dockerfile, `CMD ["yarn","start"]`)
}

func TestGenerateDockerfileDebian(t *testing.T) {
	plan := newBuildPlan(&GitRequest{
		GitUrl:         "https://github.com/acme/app.git",
		BaseImage:      "python:3.12-slim",
		InstallCommand: "pip install -r requirements.txt",
		BuildCommand:   "python setup.py build",
		StartCommand:   "python -m app serve",
	})
	dockerfile := generateDockerfile(plan)

	assert.Contains(t, dockerfile, "apt-get update && apt-get install -y git")
	assert.NotContains(t, dockerfile, "apk add")
	assert.Contains(t, dockerfile, "useradd --create-home appuser")
	assert.Contains(t, dockerfile, "--branch main")
	assert.Contains(t, dockerfile, "RUN pip install -r requirements.txt && python setup.py build")
	assert.Contains(t, dockerfile, `CMD ["python","-m","app","serve"]`)
}

func TestGenerateDockerfileDefaults(t *testing.T) {
	plan := newBuildPlan(&GitRequest{GitUrl: "https://github.com/acme/app.git"})

	assert.Equal(t, defaultBaseImage, plan.BaseImage)
	assert.Equal(t, defaultBranch, plan.Branch)
	assert.Equal(t, defaultInstallCmd, plan.InstallCmd)
	assert.Contains(t, generateDockerfile(plan), `CMD ["yarn","start"]`)
}

func TestBuildContextTar(t *testing.T) {
	dockerfile := generateDockerfile(newBuildPlan(&GitRequest{GitUrl: "https://example.com/r.git"}))
	reader, err := buildContextTar(dockerfile)
	require.NoError(t, err)

	tr := tar.NewReader(reader)
	hdr, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, "Dockerfile", hdr.Name)

	content, err := io.ReadAll(tr)
	require.NoError(t, err)
	assert.Equal(t, dockerfile, string(content))

	_, err = tr.Next()
	assert.Equal(t, io.EOF, err)
}

func TestArgvJSON(t *testing.T) {
	assert.Equal(t, `["yarn","start"]`, argvJSON(""))
	assert.Equal(t, `["node","server.js"]`, argvJSON("node server.js"))
	assert.Equal(t, `["npm","run","start:prod"]`, argvJSON("  npm  run start:prod "))
}
