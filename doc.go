// Package memcached implements a server for the memcached text protocol.
//
// A Processor executes parsed commands against a cache.Cache and renders the
// protocol replies. A Server accepts TCP connections, cuts the byte stream
// into frames and hands each frame to a FrameHandler, usually a Processor.
//
// Supported commands:
//
//	set|add|replace <key> <flags> <exptime> <bytes> [noreply]
//	append|prepend <key> <bytes> [noreply]
//	cas <key> <flags> <exptime> <bytes> <cas unique> [noreply]
//	get|gets <key>+
//
// Basic usage:
//
//	c := cache.New(cache.Config{Capacity: 1024})
//	defer c.Close()
//
//	srv := memcached.NewServer(memcached.NewProcessor(c, memcached.ProcessorConfig{}), memcached.ServerConfig{})
//	log.Fatal(srv.ListenAndServe(":11211"))
package memcached
