package services

import (
	"context"
	"fmt"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/models"
	repo "github.com/karan-singh12/cricket-fantasy-sub001/internal/repository"
)

const settingPaymentMode = "payment_mode"

// ModeResolver reads the operator-toggleable AUTO/MANUAL setting. Resolve
// always hits the settings table so a runtime flip takes effect on the next
// batch; nothing is cached across requests.
type ModeResolver struct {
	store repo.Store
	def   models.PaymentMode
}

func NewModeResolver(store repo.Store, def models.PaymentMode) *ModeResolver {
	if def != models.ModeManual {
		def = models.ModeAuto
	}
	return &ModeResolver{store: store, def: def}
}

func (m *ModeResolver) Resolve(ctx context.Context) models.PaymentMode {
	v, err := m.store.Settings().Get(ctx, settingPaymentMode)
	if err != nil {
		return m.def
	}
	if models.PaymentMode(v) == models.ModeManual {
		return models.ModeManual
	}
	return models.ModeAuto
}

func (m *ModeResolver) Set(ctx context.Context, mode models.PaymentMode) error {
	if mode != models.ModeAuto && mode != models.ModeManual {
		return fmt.Errorf("invalid payment mode %q", mode)
	}
	return m.store.Settings().Set(ctx, settingPaymentMode, string(mode))
}
