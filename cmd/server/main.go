package main

import (
	"github.com/chive/backend/internal/server"
	"github.com/chive/backend/internal/util"
	"github.com/chive/backend/pkg/logger"
	"github.com/chive/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		JSON:   util.GetEnvBool("LOG_JSON", false),
		Prefix: "server",
	})
	logger.Init(consoleLogger)

	server.Init()
}
