package main

import (
	"github.com/ctxeco/backend/internal/server"
	"github.com/ctxeco/backend/internal/util"
	"github.com/ctxeco/backend/pkg/logger"
	"github.com/ctxeco/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Service: "server",
		Debug:   debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
