package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/syncflo-billing/internal/model"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	growth, err := c.Get("growth")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), growth.PriceMinorUnits)
	assert.Equal(t, int64(3000), growth.CreditsGranted)
	assert.True(t, growth.IsFeatured)

	_, err = c.Get("unknown")
	assert.True(t, errors.Is(err, ErrPackageNotFound))

	list := c.List()
	require.Len(t, list, 3)
	assert.Equal(t, "starter", list[0].ID)
	assert.Equal(t, []string{"growth", "pro", "starter"}, c.IDs())
}

func TestGetReturnsCopy(t *testing.T) {
	c := Default()

	p, err := c.Get("pro")
	require.NoError(t, err)
	p.Features[0] = "mutated"

	again, err := c.Get("pro")
	require.NoError(t, err)
	assert.Equal(t, "Maximum Margin", again.Features[0])
}

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := New(
		model.Package{ID: "a", PriceMinorUnits: 1, CreditsGranted: 1},
		model.Package{ID: "a", PriceMinorUnits: 2, CreditsGranted: 2},
	)
	assert.Error(t, err)

	_, err = New(model.Package{ID: "b", PriceMinorUnits: 1})
	assert.Error(t, err)
}
