package pandemicsim

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/segmentio/ksuid"
)

// SQLiteOutput is the `-logger sqlite` batch-mode backend: the same
// per-node/per-network/realization-time records CSVOutput writes,
// instead inserted into a SQLite database, for exercises that want to
// query batch results with SQL. One table per record kind; the db handle
// is opened once and reused across writes.
type SQLiteOutput struct {
	SimID string
	db    *sql.DB
}

// NewSQLiteOutput opens (creating if absent) the batch database
// batch-<nnn>.db inside the directory path and ensures its tables exist.
func NewSQLiteOutput(path string, batch int) (*SQLiteOutput, error) {
	dbPath := fmt.Sprintf("%s/batch-%03d.db", path, batch)
	db, err := OpenSQLiteDB(dbPath)
	if err != nil {
		return nil, err
	}
	o := &SQLiteOutput{SimID: ksuid.New().String(), db: db}
	if err := o.init(); err != nil {
		db.Close()
		return nil, err
	}
	return o, nil
}

func (o *SQLiteOutput) init() error {
	stmts := []string{
		`create table if not exists node_day (sim_id text, day integer, node_id text, compartment text, count real)`,
		`create table if not exists network_day (sim_id text, day integer, compartment text, count real)`,
		`create table if not exists realization_time (sim_id text, realization_index integer, seconds real)`,
	}
	for _, s := range stmts {
		if _, err := o.db.Exec(s); err != nil {
			return fmt.Errorf("%q: %s", err, s)
		}
	}
	return nil
}

// WriteNodeDay inserts one row per (node, compartment) for a simulated
// day, batched in a single transaction.
func (o *SQLiteOutput) WriteNodeDay(day int, net *Network) error {
	tx, err := o.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`insert into node_day(sim_id, day, node_id, compartment, count) values(?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	labels := net.Nodes[0].Compartments.Labels()
	for _, node := range net.Nodes {
		for _, label := range labels {
			idx := node.Compartments.MustIndex(label)
			var total float64
			for a := 0; a < node.Ages; a++ {
				for r := 0; r < 2; r++ {
					for v := 0; v < 2; v++ {
						total += node.Count(a, r, v, idx)
					}
				}
			}
			if _, err := stmt.Exec(o.SimID, day, node.ID, label, total); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// WriteNetworkDay inserts one row per compartment for a simulated day's
// network-wide total.
func (o *SQLiteOutput) WriteNetworkDay(day int, net *Network) error {
	labels := net.Nodes[0].Compartments.Labels()
	totals := make([]float64, len(labels))
	for _, node := range net.Nodes {
		for i, label := range labels {
			idx := node.Compartments.MustIndex(label)
			for a := 0; a < node.Ages; a++ {
				for r := 0; r < 2; r++ {
					for v := 0; v < 2; v++ {
						totals[i] += node.Count(a, r, v, idx)
					}
				}
			}
		}
	}

	tx, err := o.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`insert into network_day(sim_id, day, compartment, count) values(?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, label := range labels {
		if _, err := stmt.Exec(o.SimID, day, label, totals[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// WriteRealizationTime inserts one row recording a completed
// realization's wall-clock duration in seconds.
func (o *SQLiteOutput) WriteRealizationTime(realizationIndex int, seconds float64) error {
	_, err := o.db.Exec(`insert into realization_time(sim_id, realization_index, seconds) values(?, ?, ?)`, o.SimID, realizationIndex, seconds)
	return err
}

// Close releases the underlying database handle.
func (o *SQLiteOutput) Close() error {
	return o.db.Close()
}

// OpenSQLiteDB opens (creating if absent) the SQLite database at path.
func OpenSQLiteDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	return db, nil
}
