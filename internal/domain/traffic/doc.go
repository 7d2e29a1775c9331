// Package traffic contains the traffic simulation bounded context.
// This context owns the run configuration model, the persona catalog,
// demographic distributions, session statistics, the session error
// taxonomy, and the ports the session engine depends on (browser
// capability, visitor profile store).
package traffic
