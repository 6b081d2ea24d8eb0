// Package database provides the SQLite connection behind the publish journal.
//
// The gateway keeps its device registry in memory only. SQLite is used for
// the optional, append-only journal of forwarded messages, which helps
// answer "what did the gateway send and when" after the fact.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are embedded by the migrations package and named
// YYYYMMDD_HHMMSS_description.{up,down}.sql.
package database
