package dataset

import (
	"context"

	"jordanella.com/runner-collector/internal/database"
)

// SQLSink stores the dataset in the sessions and samples tables
type SQLSink struct {
	db *database.DB
}

// NewSQLSink wraps an open, migrated database
func NewSQLSink(db *database.DB) *SQLSink {
	return &SQLSink{db: db}
}

func (s *SQLSink) Name() string {
	return "sql:" + string(s.db.Driver())
}

func (s *SQLSink) Write(ctx context.Context, ds Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	session := &database.SessionRecord{
		ID:           ds.SessionID,
		StartedAt:    ds.StartedAt,
		EndedAt:      ds.EndedAt,
		RegionX:      ds.Region.X,
		RegionY:      ds.Region.Y,
		RegionWidth:  ds.Region.Width,
		RegionHeight: ds.Region.Height,
		GridColumns:  ds.Columns,
		SampleCount:  len(ds.Samples),
		ActionCount:  ds.Actions(),
	}

	records := make([]database.SampleRecord, len(ds.Samples))
	for i, smp := range ds.Samples {
		records[i] = database.SampleRecord{
			Seq:         smp.Seq,
			Grid:        smp.Grid.String(),
			Action:      int(smp.Action),
			PlayerFound: smp.PlayerFound,
			GameOver:    smp.GameOver,
			ShopPrompt:  smp.ShopPrompt,
			CapturedAt:  smp.CapturedAt,
		}
	}

	return s.db.SaveSession(ctx, session, records)
}
