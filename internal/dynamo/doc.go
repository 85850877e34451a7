// Package dynamo provides core primitives shared by the integration layer
// and the engines it drives.
//
//   - [Vec3]: three-component vector
//   - [Group]: immutable selection of particle indices
//   - [Box]: periodic simulation box
//   - [Snapshot]: read-only particle data handed to analyzers
//
// The error taxonomy ([ErrInitialization], [ErrState], [ErrConfiguration],
// [ErrInternalInvariant]) lives here so every package can wrap the same
// sentinels.
package dynamo
