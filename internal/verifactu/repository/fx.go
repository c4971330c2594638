package repository

import "go.uber.org/fx"

var Module = fx.Module("verifactu.repository",
	fx.Provide(Provide),
)
