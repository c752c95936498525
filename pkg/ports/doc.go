/*
Package ports defines the driven ports (interfaces) of chainlens.

These interfaces decouple instrumentation from the apps that observe it and
from the backends that persist what was recorded.

# Key Interfaces

  - Observer: An app that learns where instrumented methods live and owns root contexts.
  - RecordStore: Persists completed Records (memory, file, Redis, SQLite, Pebble).
  - AppCatalog: Optionally persists the description of an instrumented app.
*/
package ports
