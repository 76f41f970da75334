// Package archive persists fills to PostgreSQL when a DSN is
// configured. The archive is append-only trade history; the engine
// never reads it back.
package archive

import (
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"winter/internal/model"
	"winter/pkg/conn"
)

// FillRecord is one archived fill in the fills table. RealizedPnL is
// NULL on buy rows.
type FillRecord struct {
	ID          uint   `gorm:"primaryKey"`
	TimestampUs int64  `gorm:"index"`
	Symbol      string `gorm:"size:16;index"`
	Side        string `gorm:"size:8"`
	Quantity    int64
	Price       float64
	Value       float64
	RealizedPnL *float64
	ZScore      float64
	CreatedAt   time.Time
}

func (FillRecord) TableName() string { return "fills" }

// Archive appends fills to the database.
type Archive struct {
	client *conn.Client
}

// Open connects with dsn and migrates the fills table.
func Open(dsn string) (*Archive, error) {
	client, err := conn.NewFromDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect archive")
	}
	if err := client.DB().AutoMigrate(&FillRecord{}); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "migrate fills table")
	}
	return &Archive{client: client}, nil
}

// SaveFill appends one fill. Safe on a nil archive, so observers can
// tee unconditionally; persistence failures are logged, never fatal.
func (a *Archive) SaveFill(f model.Fill) {
	if a == nil || a.client == nil {
		return
	}
	rec := newFillRecord(f)
	if err := a.client.DB().Create(&rec).Error; err != nil {
		logs.Warnf("archive fill failed, symbol: %s, err: %+v", f.Symbol, err)
	}
}

// SaveFills appends a batch in one insert.
func (a *Archive) SaveFills(fills []model.Fill) {
	if a == nil || a.client == nil || len(fills) == 0 {
		return
	}
	recs := make([]FillRecord, len(fills))
	for i, f := range fills {
		recs[i] = newFillRecord(f)
	}
	if err := a.client.DB().Create(&recs).Error; err != nil {
		logs.Warnf("archive batch failed, fills: %d, err: %+v", len(fills), err)
	}
}

// Close releases the connection pool. Safe on a nil archive.
func (a *Archive) Close() error {
	if a == nil {
		return nil
	}
	return a.client.Close()
}

func newFillRecord(f model.Fill) FillRecord {
	rec := FillRecord{
		TimestampUs: f.TimestampUs,
		Symbol:      f.Symbol,
		Side:        f.Side.String(),
		Quantity:    f.Quantity,
		Price:       f.Price,
		Value:       f.TotalValue(),
		ZScore:      f.ZScore,
	}
	if f.HasPnL {
		pnl := f.RealizedPnL
		rec.RealizedPnL = &pnl
	}
	return rec
}
