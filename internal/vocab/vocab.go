// Package vocab содержит словари (IRI), которыми описаны пайплайны,
// шаги и события контейнеров в графе.
package vocab

import "github.com/shaiso/initdaemon/internal/store"

// Пространства имён.
const (
	RDF           = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	PWO           = "http://purl.org/spar/pwo/"
	POC           = "http://www.big-data-europe.eu/vocabularies/poc/"
	DockEvent     = "http://ontology.aksw.org/dockevent/"
	DockContainer = "http://ontology.aksw.org/dockcontainer/"
)

// Базовый префикс для ресурсов, которые создаёт сервис.
const ResourceBase = "http://www.big-data-europe.eu/resources/"

// rdf
var (
	Type = store.IRI(RDF + "type")
)

// Пайплайны и шаги.
var (
	Workflow = store.IRI(PWO + "Workflow")
	Step     = store.IRI(PWO + "Step")
	HasStep  = store.IRI(PWO + "hasStep")

	Code   = store.IRI(POC + "code")
	Order  = store.IRI(POC + "order")
	Status = store.IRI(POC + "status")
	Title  = store.IRI(POC + "title")
)

// События docker и параметры запуска контейнеров.
var (
	// EventAction — тип события ("health_status", "start", ...).
	EventAction = store.IRI(DockEvent + "action")

	// EventActionExtra — дополнительная часть действия; для health_status —
	// состояние проверки ("healthy", "unhealthy").
	EventActionExtra = store.IRI(DockEvent + "actionExtra")

	// EventSource — токен источника события (ID контейнера).
	EventSource = store.IRI(DockEvent + "source")

	// EventTimeNano — время события в наносекундах (xsd:integer).
	EventTimeNano = store.IRI(DockEvent + "timeNano")

	// EventContainer — контейнер, к которому относится событие.
	EventContainer = store.IRI(DockEvent + "container")

	// ContainerEnv — переменная окружения контейнера в виде "KEY=VALUE".
	ContainerEnv = store.IRI(DockContainer + "env")
)
