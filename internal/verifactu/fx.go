// Package verifactu wires the invoice hash-chain and fiscal registration engine.
package verifactu

import (
	"github.com/smallbiznis/ancloraflow/internal/verifactu/authority"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/repository"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/service"
	"go.uber.org/fx"
)

var Module = fx.Module("verifactu",
	repository.Module,
	authority.Module,
	service.Module,
)
