// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

/*
Package supervisor runs threatfeed's long-lived components under a suture v4
tree.

	threatfeed (root)
	├── ingest-layer
	│   └── threat-stream   (stream.Consumer)
	├── view-layer
	│   └── view-hub        (websocket.Hub)
	└── api-layer
	    └── http-server     (http.Server)

Each layer restarts independently. A consumer that exhausts its reconnect
ceiling fails its service; suture restarts it after the failure backoff
while the hub keeps serving the last snapshot and the API stays up.

Supervisor events are logged through sutureslog, bridged onto the zerolog
global logger by logging.NewSlogLogger.

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddIngestService(services.NewStreamService(consumer))
	tree.AddViewService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.ShutdownTimeout))
	return tree.Serve(ctx)
*/
package supervisor
