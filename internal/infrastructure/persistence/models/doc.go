// Package models contains the GORM persistence models for the traffic
// simulator. Models map between the database schema and domain entities;
// each model provides ToDomain and FromDomain conversions so that the
// domain layer never sees GORM types.
package models
