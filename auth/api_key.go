package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/DuTi2201/gardenR4-sub001/app"
)

var (
	ErrUnknownKey = errors.New("unknown api key")
	ErrKeyExpired = errors.New("api key expired")
)

type ApiKey struct {
	Id             uint64    `db:"id"`
	Token          string    `db:"token" json:"-"`
	ExpirationTime time.Time `db:"expiration_time"`
	UserId         uint64    `db:"user_id"`
}

type KeyStore interface {
	ApiKey(ctx context.Context, token string) (*ApiKey, error)
}

type DatabaseKeys struct {
	db *app.Database
}

func NewDatabaseKeys(db *app.Database) *DatabaseKeys {
	return &DatabaseKeys{db: db}
}

func (k *DatabaseKeys) ApiKey(ctx context.Context, token string) (*ApiKey, error) {
	var key ApiKey
	if err := k.db.GetContext(ctx, &key, "SELECT * FROM api_keys WHERE token = ?", token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnknownKey
		}
		return nil, err
	}

	return &key, nil
}
