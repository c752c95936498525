/*
Package callstack correlates instrumented calls with the root invocations
that are recording them.

Correlation state travels in the context.Context of each call instead of a
process-wide registry: the root contexts that are currently recording, and
for each of them the partial stack of instrumented frames above the current
call. A goroutine that receives the caller's context (directly, or through Go
and Group) stays correlated; one that does not degrades to pass-through.
*/
package callstack
