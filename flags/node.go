package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// NodeFlags holds knobs specific to the local node instance (database, genesis, log sinks).

func NodeFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "db.preset",
			Usage: "Database preset (memory|ldb|ldb-small)",
			Value: "ldb",
		},
		cli.IntFlag{
			Name:  "cache",
			Usage: "Megabytes of memory allocated to the database cache",
			Value: 256,
		},
		cli.IntFlag{
			Name:  "db.handles",
			Usage: "Maximum number of open database files",
			Value: 512,
		},
		cli.StringFlag{
			Name:  "genesis",
			Usage: "TOML file with the network, system actor, relayers and registered subnets",
		},
		cli.IntFlag{
			Name:  "fakenet",
			Usage: "Start with a synthetic genesis of N child subnets instead of --genesis",
		},
		cli.StringFlag{
			Name:  "log.file",
			Usage: "Write logs to a rotated file instead of stderr (relative to datadir)",
		},
		cli.IntFlag{
			Name:  "log.maxsize",
			Usage: "Megabytes a log file may reach before it is rotated",
			Value: 100,
		},
		cli.IntFlag{
			Name:  "log.maxbackups",
			Usage: "Rotated log files to keep",
			Value: 10,
		},
		cli.StringFlag{
			Name:  "sentry.dsn",
			Usage: "Report errors to this Sentry DSN",
		},
	}
}
