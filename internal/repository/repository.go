// Package repository stores contacts in a MySQL database.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"gitlab.com/dirk.krummacker/contacts-api/internal/model"
)

// ErrNotFound is returned when no contact with the requested id exists.
var ErrNotFound = errors.New("repository: contact not found")

// ErrUnconfirmed is returned when a statement was executed but its result could not be read. The
// change may have been committed.
var ErrUnconfirmed = errors.New("repository: statement result unknown")

// Config holds the database connection parameters.
type Config struct {
	// Host is host[:port] of the MySQL server. The port defaults to 3306.
	Host     string        `yaml:"host"     validate:"required"`
	User     string        `yaml:"user"     validate:"required"`
	Password string        `yaml:"password" mask:"true"`
	Name     string        `yaml:"name"     default:"test"`
	Timeout  time.Duration `yaml:"timeout"  default:"5s"`
}

// DSN builds the data source name for the MySQL driver.
//
// clientFoundRows makes UPDATE report the matched rows instead of the changed ones, so that an
// update which writes identical values is not mistaken for a missing contact.
func (c Config) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = c.Host
	cfg.DBName = c.Name
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.Timeout = c.Timeout
	return cfg.FormatDSN()
}

// Open creates the database connection pool and checks that the database is reachable.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	sqlDB, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("could not reach database %s: %w", cfg.Host, err)
	}
	return sqlDB, nil
}

// Repository provides CRUD operations on the contacts table. All statements are prepared once
// when the repository is created.
type Repository struct {
	db            *sqlx.DB
	insert        *sqlx.NamedStmt
	selectAll     *sqlx.Stmt
	selectWhereId *sqlx.Stmt
	update        *sqlx.NamedStmt
	deleteWhereId *sqlx.Stmt
}

// New wraps the specified sql database and prepares all statements. The database argument can
// be a real database for production use or a mock database within unit tests.
func New(sqlDB *sql.DB) (*Repository, error) {
	var err error
	r := &Repository{db: sqlx.NewDb(sqlDB, "mysql")}

	// Prepared statements offer a significant speed increase if executed many times.
	r.insert, err = r.db.PrepareNamed(`
		INSERT INTO contacts (firstname, lastname, email, phone, title, filename)
		VALUES (:firstname, :lastname, :email, :phone, :title, :filename)
	`)
	if err != nil {
		return nil, fmt.Errorf("could not prepare insert: %w", err)
	}
	r.selectAll, err = r.db.Preparex(`
		SELECT id, firstname, lastname, email, phone, title, filename FROM contacts ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("could not prepare select: %w", err)
	}
	r.selectWhereId, err = r.db.Preparex(`
		SELECT id, firstname, lastname, email, phone, title, filename FROM contacts WHERE id = ?
	`)
	if err != nil {
		return nil, fmt.Errorf("could not prepare select by id: %w", err)
	}
	r.update, err = r.db.PrepareNamed(`
		UPDATE contacts
		SET firstname = :firstname, lastname = :lastname, email = :email, phone = :phone,
			title = :title, filename = :filename
		WHERE id = :id
	`)
	if err != nil {
		return nil, fmt.Errorf("could not prepare update: %w", err)
	}
	r.deleteWhereId, err = r.db.Preparex(`
		DELETE FROM contacts WHERE id = ?
	`)
	if err != nil {
		return nil, fmt.Errorf("could not prepare delete: %w", err)
	}
	return r, nil
}

// Create inserts the contact and returns it with the newly assigned id.
func (r *Repository) Create(ctx context.Context, contact model.Contact) (*model.Contact, error) {
	result, err := r.insert.ExecContext(ctx, &contact)
	if err != nil {
		return nil, fmt.Errorf("could not insert contact: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: could not read id of inserted contact: %w", ErrUnconfirmed, err)
	}
	contact.Id = id
	return &contact, nil
}

// FindByID returns the contact with the specified id, or ErrNotFound.
func (r *Repository) FindByID(ctx context.Context, id int64) (*model.Contact, error) {
	var contact model.Contact
	err := r.selectWhereId.GetContext(ctx, &contact, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not select contact %d: %w", id, err)
	}
	return &contact, nil
}

// FindAll returns all contacts in the order in which they were created.
func (r *Repository) FindAll(ctx context.Context) ([]model.Contact, error) {
	contacts := []model.Contact{}
	if err := r.selectAll.SelectContext(ctx, &contacts); err != nil {
		return nil, fmt.Errorf("could not select contacts: %w", err)
	}
	return contacts, nil
}

// Update overwrites all fields of the contact with the contact's id. It returns ErrNotFound if
// there is no such contact.
func (r *Repository) Update(ctx context.Context, contact model.Contact) (*model.Contact, error) {
	result, err := r.update.ExecContext(ctx, &contact)
	if err != nil {
		return nil, fmt.Errorf("could not update contact %d: %w", contact.Id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%w: could not read affected rows: %w", ErrUnconfirmed, err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &contact, nil
}

// Delete removes the contact with the specified id. It returns ErrNotFound if there is no such
// contact.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	result, err := r.deleteWhereId.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("could not delete contact %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: could not read affected rows: %w", ErrUnconfirmed, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the prepared statements and the database handle.
func (r *Repository) Close() error {
	return errors.Join(
		r.insert.Close(),
		r.selectAll.Close(),
		r.selectWhereId.Close(),
		r.update.Close(),
		r.deleteWhereId.Close(),
		r.db.Close(),
	)
}
