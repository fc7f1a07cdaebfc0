// Package native is a reference native runtime implementing bridge.Bridge on
// top of a 32-bit heap.
//
// Every class is a descriptor in native memory with a field table, a vtable
// and an interface offset table. Instances start with an 8-byte object
// header (class pointer, monitor). The runtime boots with the classes the
// injector relies on:
//
//	System.Object                     root of all reference classes
//	System.ValueType                  base of value-type skeletons
//	System.Enum                       base of enum classes
//	System.String                     UTF-16LE text
//	System.Boolean ... System.Double  primitives, each tagged with its shape
//	ISerializationCallbackReceiver    OnBeforeSerialize, OnAfterDeserialize
//
// # Memory layout
//
//	object    [klass u32][monitor u32][fields...]
//	string    [klass u32][monitor u32][length u32][utf16 units...]
//	array     [klass u32][monitor u32][bounds u32][length u32][elements...]
//	list      [klass u32][monitor u32][items u32][size u32][version u32]
//
// Value-shaped fields (primitives, enums, value types) are stored inline;
// everything else is stored as a pointer.
//
// # Managed objects
//
// Classes registered with RegisterReferenceType carry a trailing
// pointer-sized slot holding a handles.Handle to the Go wrapper. NewManaged
// creates such an instance for a Go object; ManagedObject resolves it back.
// The default finaliser of these classes fails; callers are expected to
// replace it with one that releases the handle.
//
// # Thread Safety
//
// The class table is guarded by a RWMutex. Instance memory is not
// synchronized; callers must not mutate one instance concurrently.
package native
