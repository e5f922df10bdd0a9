package app

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type Database struct {
	*sqlx.DB
	Logger *logrus.Logger
}

type Criteria interface{}

// EntityIsNull matches rows where the column is NULL when set to true
type EntityIsNull bool

// EntityIntIsNot excludes rows with the given value
type EntityIntIsNot uint64

// ParseCriteria adds a where clause for every non zero field with a db tag.
// Limit, Offset and OrderBy are handled by name.
func ParseCriteria(sb *squirrel.SelectBuilder, c Criteria, log logrus.Ext1FieldLogger) {
	c_value := reflect.ValueOf(c)
	if c_value.Kind() == reflect.Ptr {
		c_value = c_value.Elem()
	}
	typeOfT := c_value.Type()
	for i := 0; i < c_value.NumField(); i++ {
		f := c_value.Field(i)
		if f.IsZero() || f.Kind() == reflect.Struct || f.Kind() == reflect.Slice {
			continue
		}

		ft := typeOfT.Field(i)
		switch ft.Name {
		case "Limit":
			*sb = sb.Limit(uint64(f.Int()))
		case "Offset":
			*sb = sb.Offset(uint64(f.Int()))
		case "OrderBy":
			*sb = sb.OrderBy(f.String())
		default:
			tag, ok := ft.Tag.Lookup("db")
			if !ok {
				continue
			}

			switch f.Type() {
			case reflect.TypeOf(EntityIsNull(false)):
				*sb = sb.Where(squirrel.Eq{tag: nil})
			case reflect.TypeOf(EntityIntIsNot(0)):
				*sb = sb.Where(squirrel.NotEq{tag: f.Uint()})
			default:
				if log != nil {
					log.Tracef("%d: %s %s = %v -> %s", i, ft.Name, f.Type(), f.Interface(), tag)
				}
				*sb = sb.Where(squirrel.Eq{tag: f.Interface()})
			}
		}
	}
}

func (db *Database) Match(ctx context.Context, dst interface{}, table string, criteria Criteria) error {
	sb := squirrel.Select("*").From(table)
	ParseCriteria(&sb, criteria, db.Logger)

	query, args, err := sb.ToSql()
	if err != nil {
		return err
	}

	db.Logger.WithField("sql", "match").Tracef("Executing %s", query)

	return db.SelectContext(ctx, dst, query, args...)
}

func (db *Database) MatchOne(ctx context.Context, dst interface{}, table string, criteria Criteria) error {
	sb := squirrel.Select("*").From(table).Limit(1)
	ParseCriteria(&sb, criteria, db.Logger)

	query, args, err := sb.ToSql()
	if err != nil {
		return err
	}

	db.Logger.WithField("sql", "matchone").Tracef("Executing %s", query)

	return db.GetContext(ctx, dst, query, args...)
}

// Insert writes entity into table. When entity is a pointer with a zero Id
// field the generated id is written back.
func (db *Database) Insert(ctx context.Context, entity interface{}, table string) error {
	query, args, err := squirrel.Insert(table).SetMap(structToQueryMap(entity, map[string]bool{})).ToSql()
	if err != nil {
		return err
	}
	db.Logger.WithField("sql", "insert").Tracef("Executing %s with args %v", query, args)

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	values := reflect.ValueOf(entity)
	if values.Kind() != reflect.Ptr {
		return nil
	}
	id := values.Elem().FieldByName("Id")
	if !id.IsValid() || !id.CanSet() || !id.IsZero() {
		return nil
	}

	last_id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	id.SetUint(uint64(last_id))

	return nil
}

// Update sets the given columns on the row with the given id.
func (db *Database) Update(ctx context.Context, table string, id uint64, columns map[string]interface{}) (int64, error) {
	query, args, err := squirrel.Update(table).
		Where(squirrel.Eq{"id": id}).
		SetMap(columns).ToSql()
	if err != nil {
		return 0, err
	}
	db.Logger.WithField("sql", "update").Tracef("Executing %s with args %v", query, args)

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func structToQueryMap(s interface{}, ignore map[string]bool) map[string]interface{} {
	m := make(map[string]interface{})
	t := reflect.TypeOf(s)
	v := reflect.ValueOf(s)

	if v.Kind() == reflect.Ptr {
		v = v.Elem()
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		tf := t.Field(i)

		if tf.Anonymous && tf.Type.Kind() == reflect.Struct {
			for k, value := range structToQueryMap(v.Field(i).Interface(), ignore) {
				m[k] = value
			}
			continue
		}

		tag := tf.Tag.Get("db")
		if len(tag) == 0 || tag == "-" {
			continue
		}

		if ignore[tf.Name] {
			continue
		}

		vf := v.Field(i)

		if vf.Kind() == reflect.Interface {
			//Json encode dynamic values
			data, err := json.Marshal(vf.Interface())
			if err != nil {
				panic(fmt.Errorf("encoding %s: %w", tf.Name, err))
			}

			m[tag] = data
		} else {
			m[tag] = vf.Interface()
		}
	}

	return m
}
