package main

import (
	"github.com/learnhubhq/learnhub-api/app"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := app.SetupAndRunServer(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
