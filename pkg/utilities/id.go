package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

// NewAccountID generates a snowflake account id using the node from the
// SNOWFLAKE_NODE environment variable (default 1). Snowflake ids are
// time-ordered and never reused, so deleting an account and registering a
// new one cannot produce a collision.
func NewAccountID() int64 {
	nodeOnce.Do(func() {
		nodeID := int64(1)
		if env := os.Getenv("SNOWFLAKE_NODE"); env != "" {
			if parsed, err := strconv.ParseInt(env, 10, 64); err == nil {
				nodeID = parsed
			}
		}
		n, err := snowflake.NewNode(nodeID)
		if err != nil {
			// node ids are 0..1023; anything else falls back to 1
			n, _ = snowflake.NewNode(1)
		}
		node = n
	})
	return node.Generate().Int64()
}

// NewVerificationToken generates the opaque code mailed out for email
// confirmation.
func NewVerificationToken() string {
	return ksuid.New().String()
}
