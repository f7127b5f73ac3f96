package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Lookup_AllEntriesHaveQuota(t *testing.T) {
	c := Default()

	entries := c.All()
	require.Len(t, entries, 12)

	for _, e := range entries {
		d := c.Lookup(e.PlanID, e.BillingPeriod)
		assert.True(t, d.Valid(), e.Key())
		assert.Greater(t, d.UploadQuota, 0, e.Key())
		assert.Greater(t, d.Price, int64(0), e.Key())
		assert.NotEmpty(t, d.StripePriceID, e.Key())
	}
}

func TestCatalog_Lookup_Unknown(t *testing.T) {
	c := Default()

	tests := []struct {
		name   string
		plan   string
		period string
	}{
		{"unknown plan", "platinum", Monthly},
		{"unknown period", Professional, "daily"},
		{"empty", "", ""},
		{"case sensitive", "Professional", Monthly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Lookup(tt.plan, tt.period)
			assert.False(t, d.Valid())
			assert.Equal(t, 0, d.UploadQuota)
		})
	}
}

func TestCatalog_Lookup_KnownValues(t *testing.T) {
	c := Default()

	d := c.Lookup(Professional, Monthly)
	assert.Equal(t, 20, d.UploadQuota)
	assert.Equal(t, int64(5499), d.Price)
	assert.Equal(t, "price_pro_monthly", d.StripePriceID)

	d = c.Lookup(Starter, Weekly)
	assert.Equal(t, 2, d.UploadQuota)
	assert.Equal(t, int64(699), d.Price)

	d = c.Lookup(Enterprise, Yearly)
	assert.Equal(t, 800, d.UploadQuota)
	assert.Equal(t, int64(159999), d.Price)
}

func TestCatalog_All_Order(t *testing.T) {
	entries := Default().All()

	assert.Equal(t, Starter, entries[0].PlanID)
	assert.Equal(t, Weekly, entries[0].BillingPeriod)
	assert.Equal(t, Enterprise, entries[len(entries)-1].PlanID)
	assert.Equal(t, Yearly, entries[len(entries)-1].BillingPeriod)
}

func TestCatalog_WithStripePrices(t *testing.T) {
	base := Default()
	c := base.WithStripePrices(map[string]string{
		"professional_monthly": "price_1NxProMonthly",
		"starter_weekly":       "",
	})

	assert.Equal(t, "price_1NxProMonthly", c.Lookup(Professional, Monthly).StripePriceID)
	assert.Equal(t, "price_starter_weekly", c.Lookup(Starter, Weekly).StripePriceID)
	// 原目录不受影响
	assert.Equal(t, "price_pro_monthly", base.Lookup(Professional, Monthly).StripePriceID)
}
