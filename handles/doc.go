// Package handles keeps Go objects reachable while native instances refer to
// them.
//
// A native instance of an injected reference class stores a Handle in its
// trailing pointer-sized slot. The handle resolves to the Go wrapper that owns
// the instance's managed state. Releasing the handle (normally from the
// class finaliser) drops the last reference held on the Go side.
//
// Handle 0 is reserved and always invalid, so an empty slot reads as "no
// managed object". Released handles are reused.
//
// # Observers
//
// Observers receive EventCreated and EventReleased notifications
// synchronously, after the table lock has been released.
package handles
