package app

import (
	"database/sql"
	"errors"
)

func (app *App) DatabaseVersion() (int, error) {

	var current_version int
	if err := app.Database.Get(&current_version, "SELECT version FROM database_version WHERE id = 1"); err != nil {
		return 0, err
	}

	return current_version, nil
}

// CheckAndUpdateDatabase applies every statement after the stored version.
// Index 0 of database_structure is never executed.
func (app *App) CheckAndUpdateDatabase(database_structure []string) error {
	db := app.Database
	log := app.Logger

	_, err := db.Exec("CREATE TABLE IF NOT EXISTS `database_version` ( `id` SERIAL NOT NULL , `version` INT NOT NULL ) ENGINE = InnoDB;")
	if err != nil {
		return err
	}

	var current_version int
	if err := db.Get(&current_version, "SELECT version FROM database_version WHERE id = 1"); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		//Create first entry
		if _, err := db.Exec("INSERT INTO database_version(version) VALUES(0)"); err != nil {
			return err
		}
		current_version = 0
	}

	log.Debugf("Current database version: %d", current_version)

	for i := current_version + 1; i < len(database_structure); i++ {
		log.Debugf("Executing: %s", database_structure[i])
		if _, err := db.Exec(database_structure[i]); err != nil {
			return err
		}

		current_version++
		if _, err := db.Exec("UPDATE database_version SET version = ? WHERE id = 1", current_version); err != nil {
			return err
		}
	}

	log.Debugf("Current database version: %d", current_version)

	return nil
}
