package suds

// Database init and custom variables.

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// initDb opens the database and makes sure all the tables exist.
func (bot *Bot) initDb() error {
	db, err := sql.Open("sqlite3", bot.fullConfig.GetDefault("bot.database", "suds.db").(string))
	if err != nil {
		return err
	}
	bot.Db = db

	queries := []string{
		`CREATE TABLE IF NOT EXISTS "users" (
			"nick" VARCHAR PRIMARY KEY NOT NULL,
			"password" VARCHAR NOT NULL,
			"alt_nicks" VARCHAR,
			"owner" BOOL NOT NULL DEFAULT 0,
			"admin" BOOL NOT NULL DEFAULT 0,
			"joined" DATE DEFAULT (datetime('now','localtime'))
		);`,
		`CREATE TABLE IF NOT EXISTS "vars" (
			"name" VARCHAR PRIMARY KEY NOT NULL,
			"value" VARCHAR NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS "urls" (
			"id" INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
			"server" VARCHAR NOT NULL,
			"channel" VARCHAR NOT NULL,
			"nick" VARCHAR NOT NULL,
			"link" VARCHAR NOT NULL,
			"quote" VARCHAR NOT NULL,
			"title" VARCHAR,
			"timestamp" DATE DEFAULT (datetime('now','localtime'))
		);`,
		`CREATE TABLE IF NOT EXISTS "command_log" (
			"id" INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
			"server" VARCHAR NOT NULL,
			"client_id" INTEGER NOT NULL,
			"nick" VARCHAR,
			"entry" VARCHAR NOT NULL,
			"timestamp" DATE DEFAULT (datetime('now','localtime'))
		);`,
	}
	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	bot.Log.Debugf("Database ready.")
	return nil
}

// setVar will set a custom variable. Set to empty string to delete.
func (bot *Bot) setVar(name, value string) {
	if name == "" {
		return
	}
	// Delete.
	if value == "" {
		if _, err := bot.Db.Exec(`DELETE FROM vars WHERE name=?`, name); err != nil {
			bot.Log.Errorf("Can't delete custom variable %s: %s", name, err)
		}
		return
	}
	if _, err := bot.Db.Exec(`INSERT OR REPLACE INTO vars VALUES(?, ?)`, name, value); err != nil {
		bot.Log.Errorf("Can't add custom variable %s: %s", name, err)
	}
}

// getVar returns the value of a custom variable.
func (bot *Bot) getVar(name string) string {
	var value string
	result, err := bot.Db.Query(`SELECT value FROM vars WHERE name=? LIMIT 1`, name)
	if err != nil {
		return ""
	}
	defer result.Close()
	if result.Next() {
		result.Scan(&value)
	}
	return value
}
