/*
Package instrument installs recording wrappers around the methods of a
component graph.

Go has no classes to patch, so wrappers live at the slot that holds an
object:

  - An interface-typed field, slice element or map entry receives a proxy
    built from the proxy registry. The proxy forwards every method to a
    Site, which calls the wrapped function for instrumented methods and the
    plain method otherwise.
  - An exported func-typed field named by the policy is replaced in place by
    a function of the same type that records the call.

Wrapped methods whose first parameter is a context.Context take part in
recording: the context tells them which root invocations are in progress
and which frames enclose the call. Everything else is a pass-through.
*/
package instrument
