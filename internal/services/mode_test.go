package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/models"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/repository/memory"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/services"
)

func TestModeResolverDefault(t *testing.T) {
	store := memory.New()
	m := services.NewModeResolver(store, models.ModeAuto)
	assert.Equal(t, models.ModeAuto, m.Resolve(context.Background()))

	// An unusable default falls back to AUTO.
	m = services.NewModeResolver(store, models.PaymentMode("bogus"))
	assert.Equal(t, models.ModeAuto, m.Resolve(context.Background()))
}

func TestModeResolverRuntimeFlip(t *testing.T) {
	store := memory.New()
	m := services.NewModeResolver(store, models.ModeAuto)

	require.NoError(t, m.Set(context.Background(), models.ModeManual))
	assert.Equal(t, models.ModeManual, m.Resolve(context.Background()))

	require.NoError(t, m.Set(context.Background(), models.ModeAuto))
	assert.Equal(t, models.ModeAuto, m.Resolve(context.Background()))
}

func TestModeResolverRejectsInvalid(t *testing.T) {
	store := memory.New()
	m := services.NewModeResolver(store, models.ModeAuto)
	assert.Error(t, m.Set(context.Background(), models.PaymentMode("HYBRID")))
}
