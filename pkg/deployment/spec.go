/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package deployment

import (
	"github.com/pkg/errors"

	"github.com/wrytes/deployment-system/pkg/crypto"
	dbclient "github.com/wrytes/deployment-system/pkg/database/client"
	dbutils "github.com/wrytes/deployment-system/pkg/database/utils"
	"github.com/wrytes/deployment-system/pkg/docker"
	"github.com/wrytes/deployment-system/pkg/environment"
)

// SpecFromRow reconstructs a service spec from a deployment's persisted
// columns. The recovery supervisor uses it to relaunch services whose rows
// say RUNNING but whose driver services are gone.
func SpecFromRow(enc *crypto.Crypto, row *dbclient.Deployment, env *dbclient.Environment) (*docker.ServiceSpec, error) {
	ports, err := unmarshalPorts(dbutils.ParseNullString(row.Ports))
	if err != nil {
		return nil, err
	}
	volumes, err := unmarshalVolumes(dbutils.ParseNullString(row.Volumes))
	if err != nil {
		return nil, err
	}
	envVarsJSON, err := enc.Decrypt(dbutils.ParseNullString(row.EnvVars))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt env vars")
	}
	envVars, err := unmarshalEnvVars(envVarsJSON)
	if err != nil {
		return nil, err
	}
	if envVars == nil {
		envVars = map[string]string{}
	}
	if env.IsPublic && env.PublicDomain.Valid {
		for k, v := range environment.ProxyEnv(env.PublicDomain.String, row.VirtualPort.Int64) {
			envVars[k] = v
		}
	}

	spec := &docker.ServiceSpec{
		Name:     docker.ServiceName(env.Name, row.JobId),
		Image:    row.Image + ":" + row.Tag,
		Replicas: uint64(row.Replicas),
		Env:      envVars,
		Labels: map[string]string{
			docker.EnvIdLabel:        env.EnvId,
			docker.DeploymentIdLabel: row.DeploymentId,
			docker.UserIdLabel:       env.UserId,
		},
		Networks: []string{env.OverlayName},
	}
	for _, p := range ports {
		spec.Ports = append(spec.Ports, docker.PortMapping{
			Container: p.Container,
			Host:      p.Host,
			Protocol:  p.Protocol,
		})
	}
	for _, v := range volumes {
		spec.Mounts = append(spec.Mounts, docker.VolumeMount{Source: v.Name, Target: v.Target})
	}
	return spec, nil
}
