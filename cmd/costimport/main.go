package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/config"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/logging"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/server"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/util"
)

var (
	port    = flag.Int("port", 0, "server port (config.toml wins when it sets one)")
	devMode = flag.Bool("dev", false, "development mode")
	dataDir = flag.String("dataDir", "", "data directory (overrides config file)")
)

func main() {
	flag.Parse()

	cfg, info, err := config.LoadConfigWithInfo()
	if err != nil {
		cfg = config.DefaultConfig()
		info = config.LoadConfigInfo{}
	}

	if *port > 0 && !info.PortSpecified {
		cfg.Server.Port = *port
	}
	if *devMode {
		cfg.Server.DevMode = true
	}
	if *dataDir != "" {
		cfg.Data.DataDir = *dataDir
	}

	logging.Setup(cfg.Server.DevMode)
	if err != nil {
		log.Warn().Err(err).Msg("config load failed, using defaults")
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("server startup failed")
	}
	defer srv.Close()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	url := fmt.Sprintf("http://localhost:%d", cfg.Server.Port)

	go func() {
		if err := srv.Run(addr); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	if !cfg.Server.DevMode {
		if err := util.OpenBrowserWithFallback(url); err != nil {
			log.Info().Str("url", url).Msg("open this url manually")
		}
	} else {
		log.Info().Str("url", url).Msg("development mode")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
}
