package events

import "fmt"

// Colas lógicas, independientes del broker.
const (
	ReportProcessingQueue = "report-processing"
	ContactEventsQueue    = "contact-events"
)

var routes = map[Type]string{
	ReportRequestedType: ReportProcessingQueue,
	PersonUpsertedType:  ContactEventsQueue,
	ContactUpsertedType: ContactEventsQueue,
	ContactDeletedType:  ContactEventsQueue,
}

// QueueFor devuelve la cola destino de un tipo de evento.
func QueueFor(t Type) (string, bool) {
	q, ok := routes[t]
	return q, ok
}

// MustQueueFor entra en pánico si el tipo no tiene ruta: es un error de programación.
func MustQueueFor(t Type) string {
	q, ok := routes[t]
	if !ok {
		panic(fmt.Sprintf("events: no queue mapped for event type %q", t))
	}
	return q
}
