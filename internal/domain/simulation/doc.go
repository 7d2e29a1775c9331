// Package simulation is the bounded context for simulation run lifecycle.
// A Run records one execution of a traffic configuration: its status,
// the config snapshot it was started with, and the session counters it
// finished with. Progress is announced through domain events.
package simulation
