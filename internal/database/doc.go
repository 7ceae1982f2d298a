// Package database provides the PostgreSQL connection pool that holds
// notification history.
//
// Connections identify themselves as application_name=jobportal-notify and
// run in UTC. Pool size comes from database.postgres.{min,max}_conns; the
// hub's replay and client mutations share it with event ingestion and the
// retention pruner.
package database
