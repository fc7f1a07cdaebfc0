// Package inject drives type injection: it gives Go types a native class,
// a native field table and conversion routines installed as the class's
// serialisation callbacks.
//
// A Registry owns everything it creates for one native runtime:
//
//	Arena         native memory for field tables, names and type
//	              descriptors, never freed
//	Classifier    field strategies per Go type
//	Compiler      conversion routines per Go type
//	layouts       finished TypeLayout per injected type
//
// # Pipeline
//
// Inject runs a batch through discovery, ordering and four passes:
//
//	discovery           walk fields, elements and bases for types that have
//	                    no native class yet
//	ordering            bases and nested structs first; cycles are rejected
//	struct pass         value-type skeletons
//	class pass          reference classes implementing the callback
//	                    interface, namespace and finaliser fixes
//	struct field pass   field tables and StructRoutines
//	class field pass    base prefix plus own fields, ObjectRoutines installed
//	                    at OnBeforeSerialize / OnAfterDeserialize
//
// Every type moves through Pending, ClassSkeletonCreated, FieldsLaidOut and
// RoutinesInstalled, or stops at Failed. Failures are isolated per type and
// reported in the returned Report. A field whose type cannot be serialised
// is dropped with a warning instead of failing its type.
//
// # Debug levels
//
// The debugLevel argument only changes logging:
//
//	1  batch summary
//	2  per-type pipeline steps
//	3  generated routine plans, and per-call tracing of those routines
//	4  field placements
//	5  field classification
package inject
