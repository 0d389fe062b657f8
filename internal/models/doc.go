// Package models defines domain entities and persistence interfaces for the playlist converter.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing external service data
//   - [Playlist] : Basic playlist metadata from either service
//   - [Track] : Song metadata from the source playlist
//   - [WorkItem] : One unit of migration work, identified by its list position
//
// 2. Persistent Entities: Database-backed models
//   - [Run] : One engine invocation with its terminal status and counters
//   - [Match] : A resolved search key → destination video id, cached across runs
//
// Persistent entities implement the [Model] interface; [Repository] defines
// the standard data access operations.
package models
