// Package config provides configuration parsing for rcpbridge.
//
// The configuration is stored in rcpbridge.json. It only seeds start-up
// calls: nothing is written back while the bridge runs.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "port": 10000,
//	    "path": "/",
//	    "queueCapacity": 1024,
//	    "writeTimeout": "10s"
//	  },
//	  "tunnel": {
//	    "uri": "wss://relay.example.com/rcpserver/connect?key=demo",
//	    "interval": 2
//	  },
//	  "host": {
//	    "raw": false,
//	    "framing": "slip",
//	    "bufferSize": 1024
//	  },
//	  "metrics": {
//	    "address": "127.0.0.1:9100"
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	srv := server.New(cfg.ServerOptions(), listener)
package config
