/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package docker

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/swarm"
	"github.com/docker/docker/client"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/wrytes/deployment-system/pkg/config"
)

// Driver is the typed wrapper over the Docker Engine API. It owns the label
// conventions and error normalization; services receive a single injected
// instance and handlers never see it.
type Driver struct {
	cli client.APIClient
}

// NewDriver connects to the Engine socket from configuration and makes sure
// the node is an active Swarm member, initializing a single-node swarm when
// the engine has none yet.
func NewDriver(ctx context.Context) (*Driver, error) {
	host := "unix://" + config.GetDockerSocketPath()
	cli, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create docker client")
	}
	ctx2, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	info, err := cli.Info(ctx2)
	if err != nil {
		_ = cli.Close()
		return nil, errors.Wrap(err, "failed to get docker info")
	}
	switch info.Swarm.LocalNodeState {
	case swarm.LocalNodeStateActive:
	case swarm.LocalNodeStateInactive:
		nodeId, err := cli.SwarmInit(ctx2, swarm.InitRequest{
			ListenAddr:    "0.0.0.0:2377",
			AdvertiseAddr: config.GetSwarmAdvertiseAddr(),
		})
		if err != nil {
			_ = cli.Close()
			return nil, errors.Wrap(err, "failed to init docker swarm")
		}
		klog.Infof("initialized single-node swarm, node: %s", nodeId)
	default:
		_ = cli.Close()
		return nil, errors.Errorf("docker swarm is not usable (state: %s)", info.Swarm.LocalNodeState)
	}
	klog.Infof("connected to docker engine, swarm node: %s", info.Swarm.NodeID)
	return &Driver{cli: cli}, nil
}

// NewDriverWith wraps an existing API client. Used by tests.
func NewDriverWith(cli client.APIClient) *Driver {
	return &Driver{cli: cli}
}

// Close releases the underlying connection.
func (d *Driver) Close() {
	if err := d.cli.Close(); err != nil {
		klog.ErrorS(err, "failed to close docker client")
	}
}

// containsFold reports whether s contains substr, case-insensitively. The
// engine surfaces some states only as free-text errors.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// readAllBounded drains r up to max bytes. Log endpoints use it so a noisy
// service cannot balloon a response.
func readAllBounded(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read stream")
	}
	return data, nil
}

// managedLabels returns the base label set stamped on every created resource.
func managedLabels(extra map[string]string) map[string]string {
	labels := map[string]string{ManagedLabel: ManagedValue}
	for k, v := range extra {
		labels[k] = v
	}
	return labels
}
