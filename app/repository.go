package app

import (
	"context"
	"fmt"
)

// DatabaseRepository binds a Database to one table.
type DatabaseRepository struct {
	Table    string
	Database *Database
}

func (app *App) NewDatabaseRepository(table string) *DatabaseRepository {
	return NewDatabaseRepository(app.Database, table)
}

func NewDatabaseRepository(db *Database, table string) *DatabaseRepository {
	return &DatabaseRepository{
		Table:    table,
		Database: db,
	}
}

func (repo *DatabaseRepository) List(ctx context.Context, dst interface{}, c Criteria) error {
	return repo.Database.Match(ctx, dst, repo.Table, c)
}

func (repo *DatabaseRepository) Get(ctx context.Context, dst interface{}, c Criteria) error {
	return repo.Database.MatchOne(ctx, dst, repo.Table, c)
}

func (repo *DatabaseRepository) Create(ctx context.Context, entity interface{}) error {
	return repo.Database.Insert(ctx, entity, repo.Table)
}

func (repo *DatabaseRepository) Update(ctx context.Context, id uint64, columns map[string]interface{}) (bool, error) {
	rows_affected, err := repo.Database.Update(ctx, repo.Table, id, columns)
	if err != nil {
		return false, err
	}

	if rows_affected > 1 {
		return false, fmt.Errorf("More than 1 row updated in %s, %d rows updated", repo.Table, rows_affected)
	}

	return rows_affected == 1, nil
}
