package config

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var once sync.Once

// InitEnv binds process environment variables into viper. Only the first
// call does work, later calls are no-ops.
func InitEnv() {
	once.Do(func() {
		viper.AutomaticEnv()
		log.Info().Msg("Env initialized!")
	})
}
