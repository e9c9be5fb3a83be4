/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package docker

import (
	"context"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CreateOverlayNetwork creates an attachable overlay network and returns its
// id. The managed label is always stamped on top of the caller's labels.
func (d *Driver) CreateOverlayNetwork(ctx context.Context, name string, labels map[string]string) (string, error) {
	resp, err := d.cli.NetworkCreate(ctx, name, network.CreateOptions{
		Driver:     "overlay",
		Attachable: true,
		Labels:     managedLabels(labels),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to create overlay network %s", name)
	}
	if resp.Warning != "" {
		klog.Warningf("network %s created with warning: %s", name, resp.Warning)
	}
	return resp.ID, nil
}

// NetworkExists reports whether a network with the given name or id exists.
func (d *Driver) NetworkExists(ctx context.Context, nameOrId string) (bool, error) {
	_, err := d.cli.NetworkInspect(ctx, nameOrId, network.InspectOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to inspect network %s", nameOrId)
	}
	return true, nil
}

// DeleteNetwork removes a network by name or id; an absent network is success.
func (d *Driver) DeleteNetwork(ctx context.Context, nameOrId string) error {
	if err := d.cli.NetworkRemove(ctx, nameOrId); err != nil {
		if errdefs.IsNotFound(err) {
			klog.V(2).Infof("network %s already gone", nameOrId)
			return nil
		}
		return errors.Wrapf(err, "failed to remove network %s", nameOrId)
	}
	return nil
}

// ConnectContainerToNetwork attaches a container (by name or id) to a
// network. An already-connected container is success.
func (d *Driver) ConnectContainerToNetwork(ctx context.Context, networkNameOrId, container string) error {
	err := d.cli.NetworkConnect(ctx, networkNameOrId, container, &network.EndpointSettings{})
	if err != nil {
		if errdefs.IsForbidden(err) || isAlreadyConnected(err) {
			klog.V(2).Infof("container %s already connected to %s", container, networkNameOrId)
			return nil
		}
		return errors.Wrapf(err, "failed to connect %s to network %s", container, networkNameOrId)
	}
	return nil
}

// DisconnectContainerFromNetwork detaches a container; absence of either the
// network or the attachment is success.
func (d *Driver) DisconnectContainerFromNetwork(ctx context.Context, networkNameOrId, container string) error {
	err := d.cli.NetworkDisconnect(ctx, networkNameOrId, container, true)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to disconnect %s from network %s", container, networkNameOrId)
	}
	return nil
}

// ListManagedNetworks returns the names of managed networks, optionally
// filtered by env id.
func (d *Driver) ListManagedNetworks(ctx context.Context, envId string) ([]string, error) {
	args := filters.NewArgs(filters.Arg("label", ManagedLabel+"="+ManagedValue))
	if envId != "" {
		args.Add("label", EnvIdLabel+"="+envId)
	}
	networks, err := d.cli.NetworkList(ctx, network.ListOptions{Filters: args})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list managed networks")
	}
	names := make([]string, 0, len(networks))
	for _, n := range networks {
		names = append(names, n.Name)
	}
	return names, nil
}

// isAlreadyConnected matches the engine's free-text error for a duplicate
// endpoint, which is not typed.
func isAlreadyConnected(err error) bool {
	return err != nil && containsFold(err.Error(), "already exists in network")
}
