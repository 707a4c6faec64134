// Package discovery finds tuner hardware and registers one recorder per
// device instance.
//
// Service runs network and local discovery concurrently, keeps the descriptor
// lists it found and, for devices not yet registered, loads or synthesizes
// their persisted configuration before adding a recorder to the registry.
// Monitor watches udev for video4linux nodes coming and going.
package discovery
