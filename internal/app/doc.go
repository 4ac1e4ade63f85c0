// Package app composes the settlement layer into a running application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # wiring and lifecycle
//	├── domain/settlement/  # records, statuses, events, profiles
//	├── storage/            # store interfaces, memory and postgres implementations
//	├── services/
//	│   ├── settlement/     # orchestrator: step plans and failure policies
//	│   ├── notification/   # consumes notification events
//	│   └── audit/          # reports records stuck in PENDING
//	├── httpapi/            # REST handlers and routing
//	├── runtime/            # HTTP server lifecycle
//	├── system/             # service manager
//	└── metrics/            # Prometheus collectors
//
// # Dependency Direction
//
//	cmd/settlement/
//	      │
//	      ▼
//	internal/app/runtime ──► internal/app (composition)
//	                               │
//	                               ├──► internal/app/services/*
//	                               │           │
//	                               │           ├──► internal/ledger ──► internal/chain
//	                               │           ├──► internal/directory
//	                               │           └──► internal/events
//	                               │
//	                               └──► internal/platform/migrations
package app
