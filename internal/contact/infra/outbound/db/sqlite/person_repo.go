package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/davicafu/phoneregistry/internal/contact/domain"
	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
	"github.com/davicafu/phoneregistry/internal/shared/infra/platform/persistence"
)

const personSchema = `
CREATE TABLE IF NOT EXISTS cities (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE COLLATE NOCASE
);
CREATE TABLE IF NOT EXISTS persons (
	id         TEXT PRIMARY KEY,
	first_name TEXT NOT NULL,
	last_name  TEXT NOT NULL,
	company    TEXT NULL,
	is_deleted INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS contact_infos (
	id         TEXT PRIMARY KEY,
	person_id  TEXT NOT NULL REFERENCES persons(id),
	type       INTEGER NOT NULL,
	content    TEXT NOT NULL,
	city_id    TEXT NULL REFERENCES cities(id),
	is_deleted INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contact_infos_person ON contact_infos (person_id);
`

func InitPersonSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, personSchema); err != nil {
		return fmt.Errorf("create person schema: %w", err)
	}
	return nil
}

// SeedCities inserta las ciudades que falten. Se puede llamar en cada arranque.
func SeedCities(ctx context.Context, db *sql.DB, names []string) error {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO cities (id, name) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			domain.CityID(name).String(), name,
		); err != nil {
			return fmt.Errorf("seed city %q: %w", name, err)
		}
	}
	return nil
}

type PersonRepoSQLite struct {
	db *sql.DB
}

func NewPersonRepoSQLite(db *sql.DB) *PersonRepoSQLite {
	return &PersonRepoSQLite{db: db}
}

func (r *PersonRepoSQLite) InsertPerson(ctx context.Context, tx persistence.DBTX, p *domain.Person) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO persons (id, first_name, last_name, company, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.FirstName, p.LastName, p.Company, p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert person: %w", err)
	}
	return nil
}

func (r *PersonRepoSQLite) UpdatePerson(ctx context.Context, tx persistence.DBTX, p *domain.Person) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE persons SET first_name = ?, last_name = ?, company = ?, updated_at = ?
		 WHERE id = ? AND is_deleted = 0`,
		p.FirstName, p.LastName, p.Company, p.UpdatedAt.UTC(), p.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update person: %w", err)
	}
	return expectOne(res, domain.ErrPersonNotFound)
}

func (r *PersonRepoSQLite) SoftDeletePerson(ctx context.Context, tx persistence.DBTX, id uuid.UUID) ([]domain.ContactInfo, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE persons SET is_deleted = 1, updated_at = ? WHERE id = ? AND is_deleted = 0`,
		time.Now().UTC(), id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to delete person: %w", err)
	}
	if err := expectOne(res, domain.ErrPersonNotFound); err != nil {
		return nil, err
	}

	active, err := queryContacts(ctx, tx,
		`WHERE c.person_id = ? AND c.is_deleted = 0`, id.String())
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE contact_infos SET is_deleted = 1 WHERE person_id = ? AND is_deleted = 0`, id.String(),
	); err != nil {
		return nil, fmt.Errorf("failed to delete person contacts: %w", err)
	}
	for i := range active {
		active[i].IsDeleted = true
	}
	return active, nil
}

func (r *PersonRepoSQLite) InsertContact(ctx context.Context, tx persistence.DBTX, c *domain.ContactInfo) error {
	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM persons WHERE id = ? AND is_deleted = 0)`, c.PersonID.String(),
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrPersonNotFound
	}

	var cityID *string
	if c.CityID != nil {
		s := c.CityID.String()
		cityID = &s
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO contact_infos (id, person_id, type, content, city_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.PersonID.String(), int(c.Type), c.Content, cityID, c.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	return nil
}

func (r *PersonRepoSQLite) SoftDeleteContact(ctx context.Context, tx persistence.DBTX, personID, contactID uuid.UUID) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE contact_infos SET is_deleted = 1
		 WHERE id = ? AND person_id = ? AND is_deleted = 0`,
		contactID.String(), personID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	return expectOne(res, domain.ErrContactNotFound)
}

// FindCity busca por id si viene informado y si no por nombre, sin distinguir mayúsculas.
func (r *PersonRepoSQLite) FindCity(ctx context.Context, q persistence.DBTX, id *uuid.UUID, name string) (*domain.City, error) {
	var row *sql.Row
	if id != nil {
		row = q.QueryRowContext(ctx, `SELECT id, name FROM cities WHERE id = ?`, id.String())
	} else {
		row = q.QueryRowContext(ctx, `SELECT id, name FROM cities WHERE name = ?`, strings.TrimSpace(name))
	}

	var city domain.City
	var rawID string
	if err := row.Scan(&rawID, &city.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCityNotFound
		}
		return nil, err
	}
	city.ID = uuid.MustParse(rawID)
	return &city, nil
}

func (r *PersonRepoSQLite) GetPerson(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, company, is_deleted, created_at, updated_at
		 FROM persons WHERE id = ? AND is_deleted = 0`, id.String())
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPersonNotFound
	}
	if err != nil {
		return nil, err
	}

	contacts, err := queryContacts(ctx, r.db, `WHERE c.person_id = ?`, id.String())
	if err != nil {
		return nil, err
	}
	p.ContactInfos = contacts
	return p, nil
}

func (r *PersonRepoSQLite) ListPersons(ctx context.Context, page sharedDomain.Pagination) ([]*domain.Person, error) {
	page = page.Normalize()
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, first_name, last_name, company, is_deleted, created_at, updated_at
		 FROM persons WHERE is_deleted = 0 ORDER BY id LIMIT ? OFFSET ?`, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}

	persons := []*domain.Person{}
	byID := map[uuid.UUID]*domain.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		persons = append(persons, p)
		byID[p.ID] = p
	}
	// Se cierra antes de la segunda consulta: con una sola conexión no pueden convivir.
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(persons) == 0 {
		return persons, nil
	}

	placeholders := make([]string, len(persons))
	args := make([]any, len(persons))
	for i, p := range persons {
		placeholders[i] = "?"
		args[i] = p.ID.String()
	}
	contacts, err := queryContacts(ctx, r.db,
		`WHERE c.person_id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	for _, c := range contacts {
		if p, ok := byID[c.PersonID]; ok {
			p.ContactInfos = append(p.ContactInfos, c)
		}
	}
	return persons, nil
}

func (r *PersonRepoSQLite) ListCities(ctx context.Context) ([]domain.City, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM cities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cities := []domain.City{}
	for rows.Next() {
		var rawID string
		var c domain.City
		if err := rows.Scan(&rawID, &c.Name); err != nil {
			return nil, err
		}
		c.ID = uuid.MustParse(rawID)
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

// ---------- helpers ----------

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(s scanner) (*domain.Person, error) {
	var (
		p       domain.Person
		rawID   string
		company sql.NullString
	)
	if err := s.Scan(&rawID, &p.FirstName, &p.LastName, &company, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ID = uuid.MustParse(rawID)
	if company.Valid {
		p.Company = &company.String
	}
	p.ContactInfos = []domain.ContactInfo{}
	return &p, nil
}

func queryContacts(ctx context.Context, q persistence.DBTX, where string, args ...any) ([]domain.ContactInfo, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT c.id, c.person_id, c.type, c.content, c.city_id, ci.name, c.is_deleted, c.created_at
		 FROM contact_infos c LEFT JOIN cities ci ON ci.id = c.city_id `+where+`
		 ORDER BY c.created_at, c.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []domain.ContactInfo{}
	for rows.Next() {
		var (
			c                 domain.ContactInfo
			rawID, rawPerson  string
			rawCity, cityName sql.NullString
			contactType       int
		)
		if err := rows.Scan(&rawID, &rawPerson, &contactType, &c.Content, &rawCity, &cityName, &c.IsDeleted, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.ID = uuid.MustParse(rawID)
		c.PersonID = uuid.MustParse(rawPerson)
		c.Type = sharedDomain.ContactType(contactType)
		if rawCity.Valid {
			cityID := uuid.MustParse(rawCity.String)
			c.CityID = &cityID
		}
		if cityName.Valid {
			c.CityName = &cityName.String
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

var _ domain.PersonRepository = (*PersonRepoSQLite)(nil)
