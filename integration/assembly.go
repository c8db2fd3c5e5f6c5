package integration

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Fantom-foundation/lachesis-base/kvdb"
	"github.com/Fantom-foundation/lachesis-base/kvdb/leveldb"
	"github.com/Fantom-foundation/lachesis-base/kvdb/memorydb"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/consensus-shipyard/ipc-sub004/gateway"
)

const dbDirName = "gateway"

// Config is everything needed to assemble a node.
type Config struct {
	DataDir string
	DB      DBPreset
	Gateway gateway.Config
}

// Node owns the database and the gateway built on it.
type Node struct {
	DB      kvdb.Store
	Gateway *gateway.Gateway
	log     logrus.FieldLogger
}

// OpenDB opens the store described by preset. Disk stores live in
// <dataDir>/gateway.
func OpenDB(dataDir string, preset DBPreset) (kvdb.Store, error) {
	if preset.InMemory {
		return memorydb.New(), nil
	}
	dir := filepath.Join(dataDir, dbDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create db dir %s: %w", dir, err)
	}
	db, err := leveldb.New(dir, preset.CacheMB, preset.Handles, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", dir, err)
	}
	return db, nil
}

// MakeNode opens the database and builds the gateway. On failure nothing is
// left open.
func MakeNode(cfg Config, log logrus.FieldLogger, reg prometheus.Registerer) (*Node, error) {
	db, err := OpenDB(cfg.DataDir, cfg.DB)
	if err != nil {
		return nil, err
	}
	gw, err := gateway.New(db, cfg.Gateway, log, reg)
	if err != nil {
		if cerr := db.Close(); cerr != nil {
			err = multierror.Append(err, cerr)
		}
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"network": gw.Network().String(),
		"db":      cfg.DB.Name,
		"rules":   cfg.Gateway.Rules.Name,
	}).Info("Gateway node assembled")
	return &Node{
		DB:      db,
		Gateway: gw,
		log:     log,
	}, nil
}

// Close stops event delivery and closes the database.
func (n *Node) Close() error {
	var result *multierror.Error
	n.Gateway.Close()
	if err := n.DB.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close db: %w", err))
	}
	return result.ErrorOrNil()
}
