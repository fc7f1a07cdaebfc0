// Package bridge defines the contract between the field injector and a native
// runtime.
//
// The injector never touches native class descriptors directly. Everything it
// needs (resolving a Go type to a native class, registering class skeletons,
// reading and writing field value pointers, converting strings, building
// arrays and lists, patching vtables) goes through the Bridge interface.
//
// # Go shapes
//
// The package also defines the Go-side shapes the injector recognizes:
//
//	Object       embedded first in every reference type; carries the native pointer
//	Wrapper      implemented by pointers to reference types (*T embedding Object)
//	List[T]      a resizable list; []T is a fixed-size array
//
// A reference type is a struct whose first field is an embedded Object or an
// embedded reference type, which becomes its base class:
//
//	type Component struct {
//	    bridge.Object
//	    Enabled bool
//	}
//
//	type Light struct {
//	    Component
//	    Range float32
//	}
//
// # Native records
//
// Field table entries and type descriptors are plain records in native
// memory. ReadFieldEntry, WriteFieldEntry, ReadTypeDesc and WriteTypeDesc
// encode them; their sizes are FieldEntrySize and TypeDescSize.
package bridge
