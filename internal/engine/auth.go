package engine

import "github.com/cryptarena/arenad/internal/domain"

// Authorizer maps a caller identity onto engine capabilities. Lifecycle
// administration and price writing are separate capabilities so an oracle
// automation service can hold the latter without the former.
type Authorizer interface {
	CanAdminister(cfg domain.GlobalConfig, caller domain.Identity) bool
	CanSetPrices(cfg domain.GlobalConfig, caller domain.Identity) bool
	CanSweepFees(cfg domain.GlobalConfig, caller domain.Identity) bool
}

// StaticAuthorizer grants administration to the configured admin, price
// writes to the admin plus an optional dedicated price-setter identity, and
// fee sweeps to the admin and the treasury payee.
type StaticAuthorizer struct {
	PriceSetter domain.Identity // optional oracle service identity
}

func (a StaticAuthorizer) CanAdminister(cfg domain.GlobalConfig, caller domain.Identity) bool {
	return !caller.Zero() && caller == cfg.Admin
}

func (a StaticAuthorizer) CanSetPrices(cfg domain.GlobalConfig, caller domain.Identity) bool {
	if caller.Zero() {
		return false
	}
	return caller == cfg.Admin || (!a.PriceSetter.Zero() && caller == a.PriceSetter)
}

func (a StaticAuthorizer) CanSweepFees(cfg domain.GlobalConfig, caller domain.Identity) bool {
	return !caller.Zero() && (caller == cfg.Admin || caller == cfg.Treasury)
}

var _ Authorizer = StaticAuthorizer{}
