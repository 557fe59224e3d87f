// Package store defines the persistence contracts for notes, templates,
// send records and provider credentials, and the models they exchange.
//
// Two implementations live in subpackages: postgres for production and
// memory for tests and local runs. Both enforce the same rules:
// idempotency keys are unique across all owners, template versions only
// grow, and send records change status only through Transition.
package store
