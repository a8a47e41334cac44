// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

/*
Package websocket pushes live threat snapshots to browser clients.

The Hub tracks connected clients and fans out two message types:

	{"type":"snapshot","data":{"threats":[...],"locations":{...},"state":"open","generated_at":"..."}}
	{"type":"state","data":{"state":"reconnecting","timestamp":"..."}}

A client receives the current snapshot as soon as it registers, then every
snapshot the pipeline publishes. Each snapshot is the complete view, so a
client whose send queue is full is disconnected rather than allowed to hold
the broadcast loop back.

Clients may send {"type":"ping"} and receive {"type":"pong"}.

Usage:

	hub := websocket.NewHub()
	hub.SetSnapshotSource(pipe.Snapshot)
	go hub.RunWithContext(ctx)

	// in an HTTP handler, after upgrading:
	client := websocket.NewClient(hub, conn)
	if hub.RegisterClient(r.Context(), client) {
		client.Start()
	}
*/
package websocket
