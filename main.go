package main

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/campora/assistant/api"
	enginex "github.com/campora/assistant/assistant/engine"
	identityx "github.com/campora/assistant/assistant/identity"
	retrievex "github.com/campora/assistant/assistant/retrieve"
	configx "github.com/campora/assistant/pkg/config"
	genaix "github.com/campora/assistant/pkg/genai"
	logx "github.com/campora/assistant/pkg/logx"
	bunpgx "github.com/campora/assistant/store/bunpg"
)

type AppConfig struct {
	FetchTimeout time.Duration `envconfig:"FETCH_TIMEOUT" split_words:"true" default:"10s"`
}

func main() {
	logCfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*logCfg)

	appCfg := configx.MustNew[AppConfig]("ASSISTANT")

	storeCfg := configx.MustNew[bunpgx.Config]("POSTGRES")
	store := bunpgx.MustNew(*storeCfg)
	defer store.Close()

	genCfg := configx.MustNew[genaix.Config]("GENAI")
	gen := genaix.MustNew(*genCfg)

	router, err := retrievex.NewRouter(store, appCfg.FetchTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("build retrieval router")
	}

	engine, err := enginex.New(router, gen)
	if err != nil {
		log.Fatal().Err(err).Msg("build assistant engine")
	}

	resolver, err := identityx.NewResolver(store)
	if err != nil {
		log.Fatal().Err(err).Msg("build identity resolver")
	}

	apiCfg := configx.MustNew[api.Config]("API")
	server, err := api.NewServer(*apiCfg, resolver, engine)
	if err != nil {
		log.Fatal().Err(err).Msg("build api server")
	}

	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("api server stopped")
	}
}
