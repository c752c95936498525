/*
Package walker discovers the instrumentable sub-objects of an app's component
graph.

Structs are treated as schema-bearing: only their declared exported fields are
followed. Map types that match the include policy are walked as attribute
bags. Strings are always leaves, and slices, arrays and maps held in fields
are followed element by element for elements that match the policy.

Every distinct object (by pointer identity) is descended into exactly once,
so shared and cyclic graphs terminate. Repeated occurrences are still
reported, flagged as Shared, so that each location can be wrapped.
*/
package walker
