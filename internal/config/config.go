// Package config is the node's configuration oracle: where it listens, which
// (if any) address it mines to, and where its chain database lives.
package config

import (
	"fmt"
	"os"
	"strings"
)

// defaultNodeAddress is used when NODE_ADDRESS is unset, matching the
// reference implementation's hard-coded fallback.
const defaultNodeAddress = "127.0.0.1:2001"

// dbPathPattern mirrors the teacher's per-node database directory naming.
const dbPathPattern = "./tmp/blocks_%s"

// Config holds one node's runtime settings. It is read once at startup;
// nothing here changes for the life of the process.
type Config struct {
	NodeAddress   string
	MiningAddress string
	DBPath        string
}

// Load builds a Config from the environment: NODE_ADDRESS (default
// 127.0.0.1:2001), an optional MINING_ADDRESS enabling this node to mine,
// and DBName, the chain database path (when unset, a per-node directory
// derived from the node address).
func Load() *Config {
	nodeAddr := os.Getenv("NODE_ADDRESS")
	if nodeAddr == "" {
		nodeAddr = defaultNodeAddress
	}

	dbPath := os.Getenv("DBName")
	if dbPath == "" {
		dbPath = fmt.Sprintf(dbPathPattern, sanitize(nodeAddr))
	}

	c := &Config{
		NodeAddress:   nodeAddr,
		MiningAddress: os.Getenv("MINING_ADDRESS"),
		DBPath:        dbPath,
	}
	return c
}

// IsMiner reports whether this node has a mining address configured.
func (c *Config) IsMiner() bool {
	return c.MiningAddress != ""
}

func sanitize(addr string) string {
	return strings.NewReplacer(":", "_", ".", "-").Replace(addr)
}
