package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/shardis/testkit"
)

func TestRedisCache_Integration(t *testing.T) {
	conn := testkit.NewRedisConnector(t)

	for _, ser := range []string{"json", "msgpack"} {
		t.Run(ser, func(t *testing.T) {
			c, err := New(&Config{Driver: DriverRedis, Serializer: ser, Prefix: testkit.NewID() + ":"},
				WithRedisConnector(conn), WithLogger(testkit.NewLogger()))
			require.NoError(t, err)

			runSuite(t, c)
		})
	}
}

func TestRedisCache_Prefix_Integration(t *testing.T) {
	conn := testkit.NewRedisConnector(t)
	kit := testkit.NewKit(t)

	prefix := "p" + testkit.NewID() + ":"
	c, err := New(&Config{Driver: DriverRedis, Prefix: prefix}, WithRedisConnector(conn))
	require.NoError(t, err)

	require.NoError(t, c.SetInt(kit.Ctx, "k", 7, 0))
	raw, err := conn.GetClient().Get(kit.Ctx, prefix+"k").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(7), raw)

	// Close 不关闭连接器持有的客户端
	require.NoError(t, c.Close())
	require.NoError(t, conn.GetClient().Ping(kit.Ctx).Err())
}
