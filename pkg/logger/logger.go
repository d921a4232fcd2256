// pkg/logger/logger.go
package logger

import (
	"go.uber.org/zap"
)

type Sugared = *zap.SugaredLogger

// New builds the process logger. Env "prod" selects the JSON production
// encoder, anything else the human-readable development one.
func New(env string) Sugared {
	var z *zap.Logger
	if env == "prod" {
		z, _ = zap.NewProduction()
	} else {
		z, _ = zap.NewDevelopment()
	}
	return z.Sugar()
}

// Service returns a logger named for the owning binary.
func Service(env, name string) Sugared {
	return New(env).Named(name)
}
