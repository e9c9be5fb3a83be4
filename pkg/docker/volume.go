/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package docker

import (
	"context"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/errdefs"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CreateVolume creates a managed named volume. An already-existing volume is
// success; the engine returns the existing one for a matching create.
func (d *Driver) CreateVolume(ctx context.Context, name string, labels map[string]string) error {
	_, err := d.cli.VolumeCreate(ctx, volume.CreateOptions{
		Name:   name,
		Driver: "local",
		Labels: managedLabels(labels),
	})
	if err != nil {
		if errdefs.IsConflict(err) {
			klog.V(2).Infof("volume %s already exists", name)
			return nil
		}
		return errors.Wrapf(err, "failed to create volume %s", name)
	}
	return nil
}

// DeleteVolume removes a volume by name. Absence is success; an in-use volume
// is downgraded to a warning so cascade deletes keep going.
func (d *Driver) DeleteVolume(ctx context.Context, name string) error {
	if err := d.cli.VolumeRemove(ctx, name, false); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		if errdefs.IsConflict(err) {
			klog.Warningf("volume %s is in use, skipping removal", name)
			return nil
		}
		return errors.Wrapf(err, "failed to remove volume %s", name)
	}
	return nil
}

// ListManagedVolumes returns the names of managed volumes labelled with the
// given env id.
func (d *Driver) ListManagedVolumes(ctx context.Context, envId string) ([]string, error) {
	args := filters.NewArgs(filters.Arg("label", ManagedLabel+"="+ManagedValue))
	if envId != "" {
		args.Add("label", EnvIdLabel+"="+envId)
	}
	resp, err := d.cli.VolumeList(ctx, volume.ListOptions{Filters: args})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list managed volumes")
	}
	names := make([]string, 0, len(resp.Volumes))
	for _, v := range resp.Volumes {
		names = append(names, v.Name)
	}
	return names, nil
}
