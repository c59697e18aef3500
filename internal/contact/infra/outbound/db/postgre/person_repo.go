package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // Driver de PostgreSQL

	"github.com/davicafu/phoneregistry/internal/contact/domain"
	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
	"github.com/davicafu/phoneregistry/internal/shared/infra/platform/persistence"
)

const PersonSchema = `
CREATE TABLE IF NOT EXISTS cities (
	id   UUID PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_cities_name ON cities (lower(name));
CREATE TABLE IF NOT EXISTS persons (
	id         UUID PRIMARY KEY,
	first_name TEXT NOT NULL,
	last_name  TEXT NOT NULL,
	company    TEXT NULL,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS contact_infos (
	id         UUID PRIMARY KEY,
	person_id  UUID NOT NULL REFERENCES persons(id),
	type       SMALLINT NOT NULL,
	content    TEXT NOT NULL,
	city_id    UUID NULL REFERENCES cities(id),
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contact_infos_person ON contact_infos (person_id);
`

func InitPersonSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, PersonSchema); err != nil {
		return fmt.Errorf("create person schema: %w", err)
	}
	return nil
}

func SeedCities(ctx context.Context, db *sql.DB, names []string) error {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO cities (id, name) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			domain.CityID(name).String(), name,
		); err != nil {
			return fmt.Errorf("seed city %q: %w", name, err)
		}
	}
	return nil
}

// PersonRepoPostgres implementa domain.PersonRepository para PostgreSQL.
type PersonRepoPostgres struct {
	db *sql.DB
}

func NewPersonRepoPostgres(db *sql.DB) *PersonRepoPostgres {
	return &PersonRepoPostgres{db: db}
}

func (r *PersonRepoPostgres) InsertPerson(ctx context.Context, tx persistence.DBTX, p *domain.Person) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO persons (id, first_name, last_name, company, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID.String(), p.FirstName, p.LastName, p.Company, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert person: %w", err)
	}
	return nil
}

func (r *PersonRepoPostgres) UpdatePerson(ctx context.Context, tx persistence.DBTX, p *domain.Person) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE persons SET first_name = $1, last_name = $2, company = $3, updated_at = $4
		 WHERE id = $5 AND NOT is_deleted`,
		p.FirstName, p.LastName, p.Company, p.UpdatedAt, p.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update person: %w", err)
	}
	return expectOne(res, domain.ErrPersonNotFound)
}

// SoftDeletePerson usa RETURNING para obtener los contactos que seguían activos.
func (r *PersonRepoPostgres) SoftDeletePerson(ctx context.Context, tx persistence.DBTX, id uuid.UUID) ([]domain.ContactInfo, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE persons SET is_deleted = TRUE, updated_at = $1 WHERE id = $2 AND NOT is_deleted`,
		time.Now().UTC(), id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to delete person: %w", err)
	}
	if err := expectOne(res, domain.ErrPersonNotFound); err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx,
		`UPDATE contact_infos SET is_deleted = TRUE
		 WHERE person_id = $1 AND NOT is_deleted
		 RETURNING id, person_id, type, content, city_id, created_at`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to delete person contacts: %w", err)
	}
	defer rows.Close()

	removed := []domain.ContactInfo{}
	for rows.Next() {
		var (
			c           domain.ContactInfo
			cityID      uuid.NullUUID
			contactType int
		)
		if err := rows.Scan(&c.ID, &c.PersonID, &contactType, &c.Content, &cityID, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Type = sharedDomain.ContactType(contactType)
		if cityID.Valid {
			c.CityID = &cityID.UUID
		}
		c.IsDeleted = true
		removed = append(removed, c)
	}
	return removed, rows.Err()
}

func (r *PersonRepoPostgres) InsertContact(ctx context.Context, tx persistence.DBTX, c *domain.ContactInfo) error {
	var cityID any
	if c.CityID != nil {
		cityID = c.CityID.String()
	}
	// INSERT ... SELECT: si la persona no existe o está borrada no se inserta nada.
	res, err := tx.ExecContext(ctx,
		`INSERT INTO contact_infos (id, person_id, type, content, city_id, created_at)
		 SELECT $1, p.id, $3, $4, $5, $6 FROM persons p WHERE p.id = $2 AND NOT p.is_deleted`,
		c.ID.String(), c.PersonID.String(), int(c.Type), c.Content, cityID, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	return expectOne(res, domain.ErrPersonNotFound)
}

func (r *PersonRepoPostgres) SoftDeleteContact(ctx context.Context, tx persistence.DBTX, personID, contactID uuid.UUID) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE contact_infos SET is_deleted = TRUE
		 WHERE id = $1 AND person_id = $2 AND NOT is_deleted`,
		contactID.String(), personID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	return expectOne(res, domain.ErrContactNotFound)
}

func (r *PersonRepoPostgres) FindCity(ctx context.Context, q persistence.DBTX, id *uuid.UUID, name string) (*domain.City, error) {
	var row *sql.Row
	if id != nil {
		row = q.QueryRowContext(ctx, `SELECT id, name FROM cities WHERE id = $1`, id.String())
	} else {
		row = q.QueryRowContext(ctx, `SELECT id, name FROM cities WHERE lower(name) = lower($1)`, strings.TrimSpace(name))
	}

	var city domain.City
	if err := row.Scan(&city.ID, &city.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCityNotFound
		}
		return nil, err
	}
	return &city, nil
}

func (r *PersonRepoPostgres) GetPerson(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	p, err := scanPerson(r.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, company, created_at, updated_at
		 FROM persons WHERE id = $1 AND NOT is_deleted`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPersonNotFound
	}
	if err != nil {
		return nil, err
	}

	contacts, err := r.queryContacts(ctx, `WHERE c.person_id = $1`, id.String())
	if err != nil {
		return nil, err
	}
	p.ContactInfos = contacts
	return p, nil
}

func (r *PersonRepoPostgres) ListPersons(ctx context.Context, page sharedDomain.Pagination) ([]*domain.Person, error) {
	page = page.Normalize()
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, first_name, last_name, company, created_at, updated_at
		 FROM persons WHERE NOT is_deleted ORDER BY id LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	persons := []*domain.Person{}
	byID := map[uuid.UUID]*domain.Person{}
	ids := []string{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, p)
		byID[p.ID] = p
		ids = append(ids, p.ID.String())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(persons) == 0 {
		return persons, nil
	}

	contacts, err := r.queryContacts(ctx, `WHERE c.person_id = ANY($1::uuid[])`, "{"+strings.Join(ids, ",")+"}")
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

func (r *PersonRepoPostgres) ListCities(ctx context.Context) ([]domain.City, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM cities ORDER BY lower(name)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cities := []domain.City{}
	for rows.Next() {
		var c domain.City
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

func (r *PersonRepoPostgres) queryContacts(ctx context.Context, where string, args ...any) ([]domain.ContactInfo, error) {
	rows, err := r.db.QueryContext(ctx,
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
			c           domain.ContactInfo
			cityID      uuid.NullUUID
			cityName    sql.NullString
			contactType int
		)
		if err := rows.Scan(&c.ID, &c.PersonID, &contactType, &c.Content, &cityID, &cityName, &c.IsDeleted, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Type = sharedDomain.ContactType(contactType)
		if cityID.Valid {
			c.CityID = &cityID.UUID
		}
		if cityName.Valid {
			c.CityName = &cityName.String
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*domain.Person, error) {
	var (
		p       domain.Person
		company sql.NullString
	)
	if err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &company, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if company.Valid {
		p.Company = &company.String
	}
	p.ContactInfos = []domain.ContactInfo{}
	return &p, nil
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

var _ domain.PersonRepository = (*PersonRepoPostgres)(nil)
