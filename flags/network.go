package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// NetworkFlags covers the checkpointing rules of the network. A rules preset
// is applied first, then the individual overrides.

func NetworkFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "rules",
			Usage: "Network rules preset (main|test|fake)",
			Value: "main",
		},
		cli.IntFlag{
			Name:  "quorum.majority",
			Usage: "Percentage of membership weight that certifies a batch (51-100)",
			Value: 66,
		},
		cli.Uint64Flag{
			Name:  "batch.maxmsgs",
			Usage: "Maximum number of messages in one batch",
			Value: 10,
		},
		cli.Uint64Flag{
			Name:  "batch.period",
			Usage: "Height multiple non-full batches are cut at (0 disables the check)",
			Value: 10,
		},
		cli.BoolFlag{
			Name:  "prune.certified",
			Usage: "Let retention drop certified batches that were never executed",
		},
		cli.BoolFlag{
			Name:  "prune.uncertified",
			Usage: "Let retention drop batches that never reached quorum",
		},
	}
}
