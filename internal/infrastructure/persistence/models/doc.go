// Package models contains the GORM persistence models of the setoff service.
// Domain types stay free of ORM tags; every model converts to and from its
// domain counterpart with ToDomain / FromDomain.
//
// Files:
//   - base.go: shared columns for tenant-scoped aggregates
//   - setoff.go: documents, payments, details, source lines, prepayments, usages
//   - ledger.go: financial transactions and account balance heads
//   - outbox.go: transactional outbox entries
package models
