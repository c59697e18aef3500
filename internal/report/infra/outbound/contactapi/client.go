package contactapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/davicafu/phoneregistry/internal/report/domain"
	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
	sharedUtils "github.com/davicafu/phoneregistry/internal/shared/infra/utils"
)

type Config struct {
	BaseURL            string
	PageSize           int
	Timeout            time.Duration
	Retries            int
	RetryDelay         time.Duration
	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration
}

// errClient marca respuestas 4xx: reintentar no cambia nada.
var errClient = errors.New("contact api rejected request")

// Client lee personas y contactos de la API de contactos página a página.
type Client struct {
	http    *http.Client
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	// La API no sirve páginas mayores que MaxPageSize: pedir más haría que la primera
	// página pareciera la última.
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	if cfg.PageSize > sharedDomain.MaxPageSize {
		log.Warn("⚠️ Tamaño de página por encima del máximo de la API, se recorta",
			zap.Int("page_size", cfg.PageSize),
			zap.Int("max", sharedDomain.MaxPageSize),
		)
		cfg.PageSize = sharedDomain.MaxPageSize
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "contact-api",
		Timeout: cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errClient)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("⚡ Circuit breaker cambió de estado",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		breaker: breaker,
		log:     log,
	}
}

// --- DTOs de la API de contactos ---

type contactInfoDTO struct {
	ID        uuid.UUID                `json:"id"`
	Type      sharedDomain.ContactType `json:"type"`
	Content   string                   `json:"content"`
	IsDeleted bool                     `json:"isDeleted"`
	CityName  *string                  `json:"cityName"`
}

type personDTO struct {
	ID           uuid.UUID        `json:"id"`
	ContactInfos []contactInfoDTO `json:"contactInfos"`
}

// FetchAll pide páginas de PageSize hasta recibir una incompleta.
func (c *Client) FetchAll(ctx context.Context) ([]domain.PersonContacts, error) {
	var persons []domain.PersonContacts
	for skip := 0; ; skip += c.cfg.PageSize {
		page, err := c.fetchPage(ctx, skip)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrContactSourceUnavailable, err)
		}
		for _, p := range page {
			persons = append(persons, toPersonContacts(p))
		}
		if len(page) < c.cfg.PageSize {
			break
		}
	}

	c.log.Debug("Contactos obtenidos de la API", zap.Int("persons", len(persons)))
	return persons, nil
}

func (c *Client) fetchPage(ctx context.Context, skip int) ([]personDTO, error) {
	var page []personDTO
	err := sharedUtils.RetryBackoff(ctx, c.cfg.Retries, c.cfg.RetryDelay, retryable, func() error {
		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.get(ctx, skip)
		})
		if err != nil {
			return err
		}
		page = result.([]personDTO)
		return nil
	})
	return page, err
}

// retryable descarta los errores que no mejoran reintentando.
func retryable(err error) bool {
	return !errors.Is(err, errClient) &&
		!errors.Is(err, gobreaker.ErrOpenState) &&
		!errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (c *Client) get(ctx context.Context, skip int) ([]personDTO, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("take", strconv.Itoa(c.cfg.PageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/persons?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errClient, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("GET /persons: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode < 500 {
			return nil, fmt.Errorf("%w: %w", errClient, err)
		}
		return nil, err
	}

	var page []personDTO
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode /persons page: %w", err)
	}
	return page, nil
}

func toPersonContacts(p personDTO) domain.PersonContacts {
	contacts := make([]domain.ContactRecord, 0, len(p.ContactInfos))
	for _, ci := range p.ContactInfos {
		contacts = append(contacts, domain.ContactRecord{
			ID:           ci.ID,
			Type:         ci.Type,
			Content:      ci.Content,
			IsDeleted:    ci.IsDeleted,
			LocationName: ci.CityName,
		})
	}
	return domain.PersonContacts{PersonID: p.ID, Contacts: contacts}
}

var _ domain.ContactSource = (*Client)(nil)
