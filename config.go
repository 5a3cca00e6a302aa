package sdrig

import "github.com/sdrig/sdrig-go/pkg/config"

// Config, Option and the With* constructors are re-exported from pkg/config
// so callers configuring a Client never need a second import line.
type (
	Config = config.Config
	Option = config.Option
)

var (
	WithInterface    = config.WithInterface
	WithStreamID     = config.WithStreamID
	WithDBCPath      = config.WithDBCPath
	WithLinEnabled   = config.WithLinEnabled
	WithDebug        = config.WithDebug
	WithDiscoverWait = config.WithDiscoverWait
	NewConfig        = config.New
	LoadConfig       = config.Load
)
