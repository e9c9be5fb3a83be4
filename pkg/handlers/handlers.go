/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wrytes/deployment-system/pkg/config"
	"github.com/wrytes/deployment-system/pkg/credential"
	dbclient "github.com/wrytes/deployment-system/pkg/database/client"
	"github.com/wrytes/deployment-system/pkg/deployment"
	"github.com/wrytes/deployment-system/pkg/docker"
	"github.com/wrytes/deployment-system/pkg/environment"
	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
	"github.com/wrytes/deployment-system/pkg/events"
	auth_handlers "github.com/wrytes/deployment-system/pkg/handlers/auth-handlers"
	"github.com/wrytes/deployment-system/pkg/handlers/authority"
	deployment_handlers "github.com/wrytes/deployment-system/pkg/handlers/deployment-handlers"
	environment_handlers "github.com/wrytes/deployment-system/pkg/handlers/environment-handlers"
	health_handlers "github.com/wrytes/deployment-system/pkg/handlers/health-handlers"
	"github.com/wrytes/deployment-system/pkg/utils"
)

// InitHttpHandlers builds the Gin engine with logging, recovery and all route
// groups. The store, driver and bus come from the server so the recovery
// supervisor and the notifier share the same instances.
func InitHttpHandlers(store *dbclient.Client, driver *docker.Driver, bus *events.Bus) (*gin.Engine, error) {
	if store == nil {
		return nil, commonerrors.NewInternalError("database client is not initialized")
	}
	engine := gin.New()
	engine.Use(utils.AccessLog(), utils.Recovery())
	engine.NoRoute(func(c *gin.Context) {
		utils.AbortWithApiError(c, commonerrors.NewNotFoundWithMessage(c.Request.RequestURI+" not found"))
	})

	cred := credential.NewService(store)
	envService := environment.NewService(store, driver, bus)
	deployEngine := deployment.NewEngine(store, driver, bus)
	throttle := authority.NewThrottle(config.GetThrottleLimit(),
		time.Duration(config.GetThrottleTTLSecond())*time.Second)

	auth_handlers.InitAuthRouters(engine, auth_handlers.NewHandler(cred, store), cred)
	environment_handlers.InitEnvironmentRouters(engine,
		environment_handlers.NewHandler(envService, deployEngine), cred, throttle)
	deployment_handlers.InitDeploymentRouters(engine,
		deployment_handlers.NewHandler(deployEngine), cred, throttle)
	health_handlers.InitHealthRouters(engine, health_handlers.NewHandler(store))

	return engine, nil
}
