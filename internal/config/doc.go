// Package config loads svcctl's settings and flow definitions from YAML.
//
// Settings live in config.yaml inside the configuration directory
// (~/.config/svcctl by default). A missing file means defaults.
//
// The flow definition lists controller services and components:
//
//	services:
//	  - id: db
//	    type: connection-pool
//	    enabled: true
//	  - id: cache
//	    type: cache
//	    references:
//	      backing-store: db
//	components:
//	  - id: ingest
//	    kind: processor
//	    autoStart: true
//	    running: true
//	    references:
//	      cache: cache
//
// ValidateFlow reports every problem it finds at once, as a
// ConfigurationErrorCollection.
//
// Watcher calls back once per burst of writes to a file.
package config
