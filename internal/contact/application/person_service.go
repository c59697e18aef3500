package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/phoneregistry/internal/contact/domain"
	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
	sharedEvents "github.com/davicafu/phoneregistry/internal/shared/events"
	sharedCache "github.com/davicafu/phoneregistry/internal/shared/infra/platform/cache"
	"github.com/davicafu/phoneregistry/internal/shared/infra/platform/persistence"
	sharedUtils "github.com/davicafu/phoneregistry/internal/shared/infra/utils"
)

// Enqueuer escribe un evento en la outbox dentro de la transacción recibida.
type Enqueuer interface {
	Enqueue(ctx context.Context, tx persistence.DBTX, payload sharedEvents.Payload) (sharedDomain.OutboxEvent, error)
}

// AddContactInput son los datos de un contacto nuevo. CityID es opcional; para
// ubicaciones sin CityID se intenta casar Content con una ciudad conocida.
type AddContactInput struct {
	Type    sharedDomain.ContactType
	Content string
	CityID  *uuid.UUID
}

// PersonService define los casos de uso del directorio. Cada escritura deja su evento
// en la outbox dentro de la misma transacción.
type PersonService struct {
	repo     domain.PersonRepository
	tx       persistence.TxManager
	outbox   Enqueuer
	cache    sharedCache.Cache
	cacheTTL time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewPersonService(
	repo domain.PersonRepository,
	tx persistence.TxManager,
	outbox Enqueuer,
	cache sharedCache.Cache,
	cacheTTL time.Duration,
	log *zap.Logger,
) *PersonService {
	return &PersonService{
		repo:     repo,
		tx:       tx,
		outbox:   outbox,
		cache:    cache,
		cacheTTL: cacheTTL,
		now:      time.Now,
		log:      log,
	}
}

func (s *PersonService) CreatePerson(ctx context.Context, firstName, lastName string, company *string) (*domain.Person, error) {
	person, err := domain.NewPerson(firstName, lastName, company, s.now())
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx persistence.DBTX) error {
		if err := s.repo.InsertPerson(ctx, tx, person); err != nil {
			return err
		}
		_, err := s.outbox.Enqueue(ctx, tx, personUpserted(person))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create person: %w", err)
	}

	s.log.Info("👤 Persona creada", zap.String("person_id", person.ID.String()))
	return person, nil
}

func (s *PersonService) UpdatePerson(ctx context.Context, id uuid.UUID, firstName, lastName string, company *string) (*domain.Person, error) {
	person, err := s.repo.GetPerson(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := person.Rename(firstName, lastName, company, s.now()); err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx persistence.DBTX) error {
		if err := s.repo.UpdatePerson(ctx, tx, person); err != nil {
			return err
		}
		_, err := s.outbox.Enqueue(ctx, tx, personUpserted(person))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update person: %w", err)
	}

	sharedCache.AsyncDelete(ctx, s.cache, domain.CacheKeyByID(id), s.log)
	return person, nil
}

// DeletePerson borra la persona y emite ContactDeleted por cada contacto que seguía activo.
func (s *PersonService) DeletePerson(ctx context.Context, id uuid.UUID) error {
	var removed []domain.ContactInfo
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx persistence.DBTX) error {
		var err error
		removed, err = s.repo.SoftDeletePerson(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, c := range removed {
			if _, err := s.outbox.Enqueue(ctx, tx, sharedEvents.ContactDeleted{
				PersonID:  id,
				ContactID: c.ID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}

	sharedCache.AsyncDelete(ctx, s.cache, domain.CacheKeyByID(id), s.log)
	s.log.Info("🗑️ Persona eliminada",
		zap.String("person_id", id.String()),
		zap.Int("contacts", len(removed)))
	return nil
}

func (s *PersonService) AddContact(ctx context.Context, personID uuid.UUID, in AddContactInput) (*domain.ContactInfo, error) {
	contact, err := domain.NewContactInfo(personID, in.Type, in.Content, s.now())
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx persistence.DBTX) error {
		if err := s.resolveCity(ctx, tx, contact, in.CityID); err != nil {
			return err
		}
		if err := s.repo.InsertContact(ctx, tx, contact); err != nil {
			return err
		}
		_, err := s.outbox.Enqueue(ctx, tx, sharedEvents.ContactUpserted{
			PersonID:  personID,
			ContactID: contact.ID,
			Type:      contact.Type,
			Content:   contact.Content,
			CityName:  contact.CityName,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("add contact: %w", err)
	}

	sharedCache.AsyncDelete(ctx, s.cache, domain.CacheKeyByID(personID), s.log)
	return contact, nil
}

// resolveCity: un CityID explícito tiene que existir; el casado por nombre es opcional.
func (s *PersonService) resolveCity(ctx context.Context, tx persistence.DBTX, c *domain.ContactInfo, cityID *uuid.UUID) error {
	if cityID == nil && c.Type != sharedDomain.ContactLocation {
		return nil
	}

	city, err := s.repo.FindCity(ctx, tx, cityID, c.Content)
	switch {
	case err == nil:
		c.AssignCity(*city)
		return nil
	case errors.Is(err, domain.ErrCityNotFound) && cityID == nil:
		return nil
	default:
		return err
	}
}

func (s *PersonService) RemoveContact(ctx context.Context, personID, contactID uuid.UUID) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx persistence.DBTX) error {
		if err := s.repo.SoftDeleteContact(ctx, tx, personID, contactID); err != nil {
			return err
		}
		_, err := s.outbox.Enqueue(ctx, tx, sharedEvents.ContactDeleted{
			PersonID:  personID,
			ContactID: contactID,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("remove contact: %w", err)
	}

	sharedCache.AsyncDelete(ctx, s.cache, domain.CacheKeyByID(personID), s.log)
	return nil
}

func (s *PersonService) GetPerson(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	key := domain.CacheKeyByID(id)

	if s.cache != nil {
		var cached domain.Person
		if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
			s.log.Warn("⚠️ Cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return &cached, nil
		}
	}

	var person *domain.Person
	err := sharedUtils.RetryBackoff(ctx, 3, 100*time.Millisecond,
		func(err error) bool { return !errors.Is(err, domain.ErrPersonNotFound) },
		func() error {
			var err error
			person, err = s.repo.GetPerson(ctx, id)
			return err
		})
	if err != nil {
		return nil, err
	}

	sharedCache.AsyncSet(ctx, s.cache, key, person, s.cacheTTL, s.log)
	return person, nil
}

func (s *PersonService) ListPersons(ctx context.Context, page sharedDomain.Pagination) ([]*domain.Person, error) {
	return s.repo.ListPersons(ctx, page)
}

func (s *PersonService) ListCities(ctx context.Context) ([]domain.City, error) {
	return s.repo.ListCities(ctx)
}

func personUpserted(p *domain.Person) sharedEvents.PersonUpserted {
	return sharedEvents.PersonUpserted{
		PersonID:  p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Company:   p.Company,
	}
}
