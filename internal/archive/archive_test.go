package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winter/internal/model"
	"winter/internal/model/enum"
)

func TestNewFillRecord(t *testing.T) {
	rec := newFillRecord(model.Fill{
		Order: model.Order{
			Symbol:   "AAPL",
			Side:     enum.OrderSideSell,
			Type:     enum.OrderTypeMarket,
			Quantity: 10,
			Price:    151.5,
			ZScore:   -1.25,
		},
		RealizedPnL: 12.5,
		HasPnL:      true,
		TimestampUs: 42,
	})

	assert.Equal(t, int64(42), rec.TimestampUs)
	assert.Equal(t, "AAPL", rec.Symbol)
	assert.Equal(t, "SELL", rec.Side)
	assert.Equal(t, int64(10), rec.Quantity)
	assert.Equal(t, 151.5, rec.Price)
	assert.Equal(t, 1515.0, rec.Value)
	assert.Equal(t, -1.25, rec.ZScore)
	require.NotNil(t, rec.RealizedPnL)
	assert.Equal(t, 12.5, *rec.RealizedPnL)
}

func TestNewFillRecordBuyHasNullPnL(t *testing.T) {
	rec := newFillRecord(model.Fill{
		Order: model.Order{Symbol: "AAPL", Side: enum.OrderSideBuy, Quantity: 10, Price: 150},
	})
	assert.Equal(t, "BUY", rec.Side)
	assert.Nil(t, rec.RealizedPnL)
}

func TestNilArchiveIsSafe(t *testing.T) {
	var a *Archive
	a.SaveFill(model.Fill{})
	a.SaveFills([]model.Fill{{}})
	assert.NoError(t, a.Close())
}
