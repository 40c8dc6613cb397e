// Package sftpclient provides a client library for remote file-system
// operations over SSH/SFTP.
//
// This package provides:
//   - Connection establishment with exponential backoff retry
//   - Directory listing with regular expression or glob filtering
//   - Stat, exists, rename, delete and chmod primitives
//   - Streamed and in-memory transfers, plus concurrent chunked transfers
//   - Recursive directory creation and removal
//   - Lifecycle events (ready, error, end, close) for the underlying connection
//   - Support for various authentication methods (private key, password, certificate)
//   - Bastion/jump host support for multi-hop SSH connections
//
// # Basic Usage
//
// Connect and list a directory:
//
//	config := sftpclient.Config{
//		Host:    "example.com",
//		Port:    22,
//		User:    "deploy",
//		KeyPath: "~/.ssh/id_ed25519",
//	}
//
//	client, err := sftpclient.Dial(ctx, config)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	entries, err := client.List(ctx, "/var/www", sftpclient.Glob("*.html"))
//
// # Transfers
//
// Sources and destinations are tagged values:
//
//	_, err = client.Put(ctx, sftpclient.FromBytes([]byte("hello")), "/tmp/hello.txt", nil)
//	data, err := client.Get(ctx, "/tmp/hello.txt", sftpclient.ToMemory(), nil)
//	_, err = client.Get(ctx, "/tmp/hello.txt", sftpclient.ToFile("/local/hello.txt"), nil)
//
// # Directory Trees
//
//	_, err = client.Mkdir(ctx, "/srv/releases/2024/01", true)
//	_, err = client.Rmdir(ctx, "/srv/releases/2023", true)
//
// # Retries
//
// Connect retries retryable failures (refused connections, timeouts, failed
// handshakes) Retries times, waiting RetryMinTimeout * RetryFactor^attempt
// between attempts. The defaults are 2 retries, factor 2 and 2 seconds.
package sftpclient
