// Package store holds the client-side state containers of a docupilot
// workspace.
//
// Each store owns one state value and exposes it through copy-returning
// accessors. Mutations are pure transitions on the state value, committed
// atomically by the store. Asynchronous operations follow a three-phase
// lifecycle: a Begin call issues a Ticket and applies the start transition
// (optionally an optimistic mutation paired with an Undo), and the matching
// Complete or Fail call commits only while its ticket is still current.
// Stores never block and never call collaborators; sequencing across stores
// belongs to the caller.
package store
