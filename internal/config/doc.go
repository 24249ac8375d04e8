// Package config loads instrumentation settings from YAML.
//
// Files are decoded strictly (unknown keys are errors), defaults are filled
// in for anything omitted, and the result is checked against an embedded CUE
// schema that holds every range and shape rule:
//
//	release: 9f1c2e7
//	stack:
//	  capacity: 64
//	buffer:
//	  capacity: 20000
//	filters:
//	  count: 2
//	  rotate_every: 1000
//	root_markers: ["-deploy", "/checkout"]
//	metrics: true
//	sinks:
//	  - type: store
//	    path: tplscope.db
//	  - type: redis
//	    addr: localhost:6379
//	    key: tplscope:batches
//	    max_len: 10000
//	    ttl: 24h
package config
