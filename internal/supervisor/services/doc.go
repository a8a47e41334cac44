// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

// Package services adapts threatfeed components to suture.Service.
//
// Each wrapper translates a component's own lifecycle into Serve(ctx):
//
//   - StreamService runs the upstream threat consumer. A consumer that gives
//     up after its retry ceiling returns an error and suture restarts it with
//     the tree's failure backoff.
//   - HubService runs the view hub until the context ends.
//   - HTTPService runs ListenAndServe and drains with Shutdown on cancel.
//
// Every wrapper implements fmt.Stringer so supervisor events name it.
package services
