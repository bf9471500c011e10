package main

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/fanpulse/fanpulse/internal/migration"
	"github.com/fanpulse/fanpulse/internal/observability"
	"github.com/fanpulse/fanpulse/internal/server"
	"github.com/fanpulse/fanpulse/pkg/db"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		server.Module,
		migration.Module,
	)
	app.Run()
}

// RegisterSnowflake builds the process-wide ID generator. Each
// replica needs a distinct SNOWFLAKE_NODE_ID so IDs never collide.
func RegisterSnowflake() *snowflake.Node {
	nodeID := int64(1)
	if raw := os.Getenv("SNOWFLAKE_NODE_ID"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			panic(err)
		}
		nodeID = parsed
	}

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		panic(err)
	}
	return node
}
