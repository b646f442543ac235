/*
Package main implements bhdns, a blocking DNS proxy.

bhdns listens for DNS queries over UDP and answers them in one of two ways:

  - Queries for a single A record of a blocked domain, or any name below it,
    are answered locally with the configured sinkhole address.
  - Everything else is forwarded verbatim to one upstream resolver and the
    answer is relayed back to the client.

Blocked domains are read at start from a file, one domain per line, and
kept in a label trie. The trie does not change while the server runs.

A second UDP socket answers the plaintext request "stats" with the
counters of the running server, and an optional HTTP API exposes the
same counters to Prometheus together with blocklist lookups.

Usage:

	bhdns -c bhdns.conf
	bhdns check -c bhdns.conf
	bhdns gen-config bhdns.conf

When the default config file is missing it is generated on first start.
*/
package main
