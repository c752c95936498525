/*
Package domain contains the data model shared by the chainlens instrumentation
core, its stores and its adapters.

It is kept free of reflection-driven logic and I/O so that stores and
transports can depend on it without pulling in the instrumentation machinery.

# Key Entities

  - Path: the address of a sub-object inside an app's component graph.
  - Method / Frame: what ran, and where it sits.
  - CallRecord: one captured invocation (args, rets, error, timing, stack).
  - Record: all calls captured during one root invocation.
  - Hooks: callbacks fired as calls and records complete.
*/
package domain
