package events

import (
	"encoding/json"
	"errors"
	"fmt"

	sharedUtils "github.com/davicafu/phoneregistry/internal/shared/infra/utils"
)

// Type es la etiqueta del evento dentro de un conjunto cerrado.
type Type string

const (
	ReportRequestedType Type = "ReportRequested"
	PersonUpsertedType  Type = "PersonUpserted"
	ContactUpsertedType Type = "ContactUpserted"
	ContactDeletedType  Type = "ContactDeleted"
)

var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrMalformedEvent   = errors.New("malformed event")
)

// Payload es la unión etiquetada de los esquemas conocidos.
type Payload interface {
	EventType() Type
	Validate() error
}

// Envelope es el formato en el cable: {eventType, payload}.
type Envelope struct {
	EventType Type            `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
}

// Known indica si t pertenece al conjunto cerrado de eventos.
func Known(t Type) bool {
	switch t {
	case ReportRequestedType, PersonUpsertedType, ContactUpsertedType, ContactDeletedType:
		return true
	}
	return false
}

// MarshalPayload valida y serializa un payload. Los errores deben abortar la transacción del llamador.
func MarshalPayload(p Payload) (json.RawMessage, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrMalformedEvent)
	}
	if !Known(p.EventType()) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, p.EventType())
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, p.EventType(), err)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("serialize %s payload: %w", p.EventType(), err)
	}
	return raw, nil
}

// Encode construye el cuerpo del mensaje a partir de un payload ya serializado.
func Encode(t Type, payload json.RawMessage) ([]byte, error) {
	return json.Marshal(Envelope{EventType: t, Payload: payload})
}

// Decode interpreta un mensaje del bus. Tipos desconocidos devuelven ErrUnknownEventType,
// cuerpos inválidos ErrMalformedEvent.
func Decode(body []byte) (Payload, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrMalformedEvent, err)
	}

	switch env.EventType {
	case ReportRequestedType:
		return decodeAs[ReportRequested](env.Payload)
	case PersonUpsertedType:
		return decodeAs[PersonUpserted](env.Payload)
	case ContactUpsertedType:
		return decodeAs[ContactUpserted](env.Payload)
	case ContactDeletedType:
		return decodeAs[ContactDeleted](env.Payload)
	case "":
		return nil, fmt.Errorf("%w: missing eventType", ErrMalformedEvent)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.EventType)
	}
}

func decodeAs[T Payload](raw json.RawMessage) (Payload, error) {
	evt, err := sharedUtils.UnmarshalAs[T](raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := evt.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, evt.EventType(), err)
	}
	return evt, nil
}
