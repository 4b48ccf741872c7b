// Package main runs the seat monitor: a websocket detection stream and seat snapshots over HTTP.
package main

import (
	"go.viam.com/utils"

	// registers all camera models.
	_ "github.com/ysay/zari-vision/components/camera/register"
	"github.com/ysay/zari-vision/logging"
	// registers all detector models.
	_ "github.com/ysay/zari-vision/services/vision/register"
	"github.com/ysay/zari-vision/web/server"
)

var logger = logging.NewDebugLogger("entrypoint")

func main() {
	utils.ContextualMain(server.RunServer, logger)
}
