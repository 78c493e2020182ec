package state

import (
	"go.uber.org/zap"

	"github.com/indieinfra/pantry/config"
	"github.com/indieinfra/pantry/registry"
	"github.com/indieinfra/pantry/storage/index"
	"github.com/indieinfra/pantry/storage/media"
)

type PantryState struct {
	Cfg      *config.Config
	Logger   *zap.Logger
	Index    index.Index
	Local    media.LocalStore
	Remote   media.Store
	Registry *registry.Registry
}
