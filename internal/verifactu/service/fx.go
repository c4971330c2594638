package service

import "go.uber.org/fx"

var Module = fx.Module("verifactu.service",
	fx.Provide(NewService),
)
